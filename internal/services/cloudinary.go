package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStorage(cloudinaryURL string) (*CloudinaryStorage, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required for the cloudinary storage driver")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init from URL failed: %w", err)
	}
	return &CloudinaryStorage{cld: cld}, nil
}

// Upload stores the file under a public id derived from key.
func (s *CloudinaryStorage) Upload(ctx context.Context, body io.Reader, key, contentType string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID: publicIDFromKey(key),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("cloudinary response is nil")
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	if resp.SecureURL != "" {
		return resp.SecureURL, nil
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return "", fmt.Errorf("cloudinary returned no URL")
}

func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicIDFromKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("cloudinary deletion failed: %s", result.Result)
	}
	return nil
}

// Cloudinary public ids carry no extension.
func publicIDFromKey(key string) string {
	return "sustainareview/" + strings.TrimSuffix(key, path.Ext(key))
}
