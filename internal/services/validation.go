package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultEmailValidationEndpoint = "https://emailvalidation.abstractapi.com/v1/"

// EmailChecker reports whether an address can receive mail.
type EmailChecker interface {
	IsEmailValid(ctx context.Context, email string) (bool, error)
}

type ValidationService struct {
	emailAPIKey string
	endpoint    string
	client      *http.Client
}

// Email validation response struct matching the actual API response
type EmailValidationResponse struct {
	Email          string                `json:"email"`
	Autocorrect    string                `json:"autocorrect"`
	Deliverability string                `json:"deliverability"`
	QualityScore   string                `json:"quality_score"`
	IsValidFormat  EmailValidationDetail `json:"is_valid_format"`
	IsFreeEmail    EmailValidationDetail `json:"is_free_email"`
	IsDisposable   EmailValidationDetail `json:"is_disposable_email"`
	IsRoleEmail    EmailValidationDetail `json:"is_role_email"`
	IsCatchall     EmailValidationDetail `json:"is_catchall_email"`
	IsMxFound      EmailValidationDetail `json:"is_mx_found"`
	IsSmtpValid    EmailValidationDetail `json:"is_smtp_valid"`
}

type EmailValidationDetail struct {
	Value bool   `json:"value"`
	Text  string `json:"text"`
}

func NewValidationService(emailAPIKey string) *ValidationService {
	return &ValidationService{
		emailAPIKey: emailAPIKey,
		endpoint:    defaultEmailValidationEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithEndpoint points the service at another API host.
func (v *ValidationService) WithEndpoint(endpoint string) *ValidationService {
	v.endpoint = endpoint
	return v
}

func (v *ValidationService) ValidateEmail(ctx context.Context, email string) (*EmailValidationResponse, error) {
	query := url.Values{}
	query.Set("api_key", v.emailAPIKey)
	query.Set("email", email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build email validation request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make email validation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("email validation API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email validation response: %w", err)
	}

	var result EmailValidationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse email validation response: %w", err)
	}

	return &result, nil
}

func (v *ValidationService) IsEmailValid(ctx context.Context, email string) (bool, error) {
	result, err := v.ValidateEmail(ctx, email)
	if err != nil {
		return false, err
	}

	isValid := result.IsValidFormat.Value &&
		!result.IsDisposable.Value &&
		result.IsMxFound.Value &&
		result.Deliverability == "DELIVERABLE"

	return isValid, nil
}
