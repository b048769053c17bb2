package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/services"
)

func TestValidationService_IsEmailValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("email") {
		case "good@example.com":
			w.Write([]byte(`{"email":"good@example.com","deliverability":"DELIVERABLE","is_valid_format":{"value":true},"is_disposable_email":{"value":false},"is_mx_found":{"value":true}}`))
		case "temp@mailinator.com":
			w.Write([]byte(`{"deliverability":"DELIVERABLE","is_valid_format":{"value":true},"is_disposable_email":{"value":true},"is_mx_found":{"value":true}}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	svc := services.NewValidationService("test-key").WithEndpoint(server.URL)
	ctx := context.Background()

	ok, err := svc.IsEmailValid(ctx, "good@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsEmailValid(ctx, "temp@mailinator.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsEmailValid(ctx, "limited@example.com")
	assert.Error(t, err)
}
