package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sustainareview/sustainareview-api/internal/config"
)

const (
	MaxPhotoSize       = 5 * 1024 * 1024 // 5MB
	MaxPhotosPerReview = 5
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type UploadResult struct {
	Key         string
	URL         string
	FileName    string
	ContentType string
	Size        int64
}

// PhotoStorage persists uploaded review photos and serves them by URL.
type PhotoStorage interface {
	Upload(ctx context.Context, body io.Reader, key, contentType string) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// NewPhotoStorage picks the backend named by STORAGE_DRIVER.
func NewPhotoStorage(cfg *config.Config) (PhotoStorage, error) {
	switch cfg.StorageDriver {
	case "s3":
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
		return NewS3Service(cfg.S3Region, cfg.S3BucketName, cfg.S3AccessKey, cfg.S3SecretKey), nil
	case "cloudinary":
		return NewCloudinaryStorage(cfg.CloudinaryURL)
	case "local", "":
		return NewLocalStorage(cfg.UploadDir, cfg.UploadBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// ValidatePhoto checks size and type and returns the resolved content type.
func ValidatePhoto(header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", fmt.Errorf("%w: photo is required", ErrValidation)
	}
	if header.Size > MaxPhotoSize {
		return "", fmt.Errorf("%w: %s is too large (max %d bytes)", ErrValidation, header.Filename, MaxPhotoSize)
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		// Fallback to extension-based detection
		contentType = contentTypeFromExtension(header.Filename)
	}
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	if !allowedPhotoTypes[contentType] {
		return "", fmt.Errorf("%w: %s has unsupported type %s", ErrValidation, header.Filename, contentType)
	}
	return contentType, nil
}

// storePhoto validates and uploads one multipart file.
func storePhoto(ctx context.Context, storage PhotoStorage, header *multipart.FileHeader) (*UploadResult, error) {
	contentType, err := ValidatePhoto(header)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer file.Close()

	key := photoKey(header.Filename)
	url, err := storage.Upload(ctx, file, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", header.Filename, err)
	}

	return &UploadResult{
		Key:         key,
		URL:         url,
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        header.Size,
	}, nil
}

type batchDeleter interface {
	DeleteMultiple(ctx context.Context, keys []string) error
}

func deleteStoredPhotos(ctx context.Context, storage PhotoStorage, keys []string) {
	if len(keys) == 0 {
		return
	}
	if batch, ok := storage.(batchDeleter); ok {
		if err := batch.DeleteMultiple(ctx, keys); err != nil {
			logWarn("failed to delete stored photos", err)
		}
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := storage.Delete(ctx, key); err != nil {
			logWarn("failed to delete stored photo "+key, err)
		}
	}
}

func photoKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	timestamp := time.Now().UTC().Format("2006/01/02")
	return fmt.Sprintf("reviews/photos/%s/%s%s", timestamp, uuid.NewString(), ext)
}

func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
