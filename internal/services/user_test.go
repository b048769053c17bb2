package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "greenfan", models.RoleUser)
	createUser(t, db, "taken", models.RoleUser)
	svc := services.NewUserService(db, newLocalStorage(t), nil)
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, user.ID, services.UpdateProfileRequest{
		FirstName: strPtr(" Ada "),
		Email:     strPtr("ADA@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "ada@example.com", updated.Email)
	assert.Equal(t, "greenfan", updated.Username)

	// Keeping your own username is not a conflict
	_, err = svc.UpdateProfile(ctx, user.ID, services.UpdateProfileRequest{Username: strPtr("greenfan")})
	assert.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, user.ID, services.UpdateProfileRequest{Username: strPtr("taken")})
	assert.ErrorIs(t, err, services.ErrUserExists)
	_, err = svc.UpdateProfile(ctx, user.ID, services.UpdateProfileRequest{Email: strPtr("taken@example.com")})
	assert.ErrorIs(t, err, services.ErrConflict)
	_, err = svc.UpdateProfile(ctx, user.ID, services.UpdateProfileRequest{Email: strPtr("nope")})
	assert.ErrorIs(t, err, services.ErrValidation)

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)

	_, err = svc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "greenfan", models.RoleUser)
	svc := services.NewUserService(db, newLocalStorage(t), nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, services.ChangePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "next-password"})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	err = svc.ChangePassword(ctx, user.ID, services.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "short"})
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, services.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "next-password"}))

	auth := services.NewAuthService(db, testConfig(), nil, nil)
	_, err = auth.Login(ctx, services.LoginRequest{Username: "greenfan", Password: "next-password"})
	assert.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	leaving := createUser(t, db, "leaving", models.RoleUser)
	staying := createUser(t, db, "staying", models.RoleUser)
	product := createProduct(t, db, productOpts{name: "Steel Bottle"})
	storage := newLocalStorage(t)
	ctx := context.Background()

	reviews := services.NewReviewService(db, storage, nil, nil)
	admin := services.NewAdminService(db, storage, nil, nil)

	files := fileHeaders(t, "photos", map[string]string{"front.jpg": "image/jpeg"}, 16)
	own, err := reviews.Submit(ctx, leaving.ID, product.ID, validReviewInput(), files)
	require.NoError(t, err)
	_, err = admin.ModerateReview(ctx, own.ID, services.ModerationRequest{Status: models.ModerationApproved})
	require.NoError(t, err)

	input := validReviewInput()
	input.OverallRating = 3
	theirs, err := reviews.Submit(ctx, staying.ID, product.ID, input, nil)
	require.NoError(t, err)
	_, err = admin.ModerateReview(ctx, theirs.ID, services.ModerationRequest{Status: models.ModerationApproved})
	require.NoError(t, err)

	_, err = reviews.Vote(ctx, leaving.ID, theirs.ID, true)
	require.NoError(t, err)
	_, err = reviews.Vote(ctx, staying.ID, own.ID, true)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Bookmark{UserID: leaving.ID, ProductID: product.ID}).Error)

	var photo models.ReviewPhoto
	require.NoError(t, db.First(&photo, "review_id = ?", own.ID).Error)

	cache := newMemoryCache()
	svc := services.NewUserService(db, storage, cache)
	require.NoError(t, svc.DeleteAccount(ctx, leaving.ID))

	var count int64
	db.Model(&models.User{}).Where("id = ?", leaving.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.Review{}).Where("user_id = ?", leaving.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.ReviewVote{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.Bookmark{}).Count(&count)
	assert.Zero(t, count)

	_, err = os.Stat(filepath.Join(storage.Dir(), photo.StorageKey))
	assert.True(t, os.IsNotExist(err))

	var stored models.Product
	require.NoError(t, db.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 1, stored.ReviewCount)
	assert.InDelta(t, 3.0, stored.AverageRating, 0.001)

	var remaining models.Review
	require.NoError(t, db.First(&remaining, "id = ?", theirs.ID).Error)
	assert.Zero(t, remaining.HelpfulCount)
	assert.Equal(t, 1, cache.invalidated)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, leaving.ID), services.ErrUserNotFound)
}
