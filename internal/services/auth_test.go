package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type stubEmailChecker struct {
	valid bool
	err   error
}

func (s stubEmailChecker) IsEmailValid(ctx context.Context, email string) (bool, error) {
	return s.valid, s.err
}

func TestRegister(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	svc := services.NewAuthService(db, cfg, nil, nil)

	resp, err := svc.Register(context.Background(), services.RegisterRequest{
		Username: "greenfan",
		Email:    "  GreenFan@Example.com ",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "greenfan@example.com", resp.User.Email)
	assert.Equal(t, models.RoleUser, resp.User.Role)

	claims, err := utils.ValidateToken(resp.Token, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", resp.User.ID).Error)
	assert.NotEqual(t, "supersecret", stored.Password)
	assert.True(t, stored.CheckPassword("supersecret"))
}

func TestRegister_Conflicts(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewAuthService(db, testConfig(), nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, services.RegisterRequest{Username: "greenfan", Email: "fan@example.com", Password: "supersecret"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, services.RegisterRequest{Username: "other", Email: "FAN@example.com", Password: "supersecret"})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = svc.Register(ctx, services.RegisterRequest{Username: "greenfan", Email: "new@example.com", Password: "supersecret"})
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewAuthService(db, testConfig(), nil, nil)

	cases := map[string]services.RegisterRequest{
		"short password": {Username: "greenfan", Email: "fan@example.com", Password: "short"},
		"bad email":      {Username: "greenfan", Email: "not-an-email", Password: "supersecret"},
		"bad username":   {Username: "g!", Email: "fan@example.com", Password: "supersecret"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestRegister_EmailChecker(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rejecting := services.NewAuthService(db, testConfig(), stubEmailChecker{valid: false}, nil)
	_, err := rejecting.Register(ctx, services.RegisterRequest{Username: "bounce", Email: "bounce@example.com", Password: "supersecret"})
	assert.ErrorIs(t, err, services.ErrValidation)

	// An unreachable checker does not block sign-up
	failing := services.NewAuthService(db, testConfig(), stubEmailChecker{err: errors.New("timeout")}, nil)
	_, err = failing.Register(ctx, services.RegisterRequest{Username: "offline", Email: "offline@example.com", Password: "supersecret"})
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "greenfan", models.RoleUser)
	svc := services.NewAuthService(db, testConfig(), nil, nil)
	ctx := context.Background()

	resp, err := svc.Login(ctx, services.LoginRequest{Email: "greenfan@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	resp, err = svc.Login(ctx, services.LoginRequest{Username: "greenfan", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "greenfan", resp.User.Username)

	resp, err = svc.Login(ctx, services.LoginRequest{Email: "greenfan@example.com", Password: "wrong-password"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = svc.Login(ctx, services.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = svc.Login(ctx, services.LoginRequest{Password: "password123"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestPasswordResetFlow(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "greenfan", models.RoleUser)
	cfg := testConfig()

	mailer := new(mockMailer)
	var token string
	mailer.On("SendPasswordResetEmail", "greenfan@example.com", mock.AnythingOfType("string"), cfg.BaseURL).
		Run(func(args mock.Arguments) { token = args.String(1) }).
		Return(nil).Once()

	svc := services.NewAuthService(db, cfg, nil, mailer)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, services.ForgotPasswordRequest{Email: "GreenFan@example.com"}))
	mailer.AssertExpectations(t)
	require.Len(t, token, 64)

	user, err := svc.ValidateResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "greenfan", user.Username)

	err = svc.ResetPassword(ctx, services.ResetPasswordRequest{Token: token, NewPassword: "short"})
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, services.ResetPasswordRequest{Token: token, NewPassword: "brand-new-pass"}))

	// Tokens are single use
	err = svc.ResetPassword(ctx, services.ResetPasswordRequest{Token: token, NewPassword: "another-pass"})
	assert.ErrorIs(t, err, services.ErrInvalidResetToken)
	_, err = svc.ValidateResetToken(ctx, token)
	assert.ErrorIs(t, err, services.ErrInvalidResetToken)

	_, err = svc.Login(ctx, services.LoginRequest{Email: "greenfan@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = svc.Login(ctx, services.LoginRequest{Email: "greenfan@example.com", Password: "brand-new-pass"})
	assert.NoError(t, err)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	db := newTestDB(t)
	mailer := new(mockMailer)
	svc := services.NewAuthService(db, testConfig(), nil, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), services.ForgotPasswordRequest{Email: "ghost@example.com"}))
	mailer.AssertNotCalled(t, "SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything)

	var count int64
	db.Model(&models.PasswordResetToken{}).Count(&count)
	assert.Zero(t, count)
}

func TestForgotPassword_SupersedesOlderTokens(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "greenfan", models.RoleUser)
	cfg := testConfig()

	var tokens []string
	mailer := new(mockMailer)
	mailer.On("SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { tokens = append(tokens, args.String(1)) }).
		Return(errors.New("smtp down"))

	svc := services.NewAuthService(db, cfg, nil, mailer)
	ctx := context.Background()

	// Mail failures are logged, not returned
	require.NoError(t, svc.ForgotPassword(ctx, services.ForgotPasswordRequest{Email: "greenfan@example.com"}))
	require.NoError(t, svc.ForgotPassword(ctx, services.ForgotPasswordRequest{Email: "greenfan@example.com"}))
	require.Len(t, tokens, 2)

	_, err := svc.ValidateResetToken(ctx, tokens[0])
	assert.ErrorIs(t, err, services.ErrInvalidResetToken)
	_, err = svc.ValidateResetToken(ctx, tokens[1])
	assert.NoError(t, err)
}
