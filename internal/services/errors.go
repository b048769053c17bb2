package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Handlers map these onto HTTP status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrInvalidFilter      = newKindError(ErrValidation, "invalid filter parameters")
	ErrInvalidResetToken  = newKindError(ErrValidation, "invalid or expired reset token")
	ErrInvalidCredentials = newKindError(ErrUnauthorized, "invalid credentials")
	ErrAccountGone        = newKindError(ErrUnauthorized, "account no longer exists")
	ErrNotReviewAuthor    = newKindError(ErrForbidden, "only the author can modify this review")
	ErrOwnReviewVote      = newKindError(ErrForbidden, "you cannot vote on your own review")

	ErrUserNotFound      = newKindError(ErrNotFound, "user not found")
	ErrProductNotFound   = newKindError(ErrNotFound, "product not found")
	ErrReviewNotFound    = newKindError(ErrNotFound, "review not found")
	ErrCategoryNotFound  = newKindError(ErrNotFound, "category not found")
	ErrPhotoNotFound     = newKindError(ErrNotFound, "photo not found")
	ErrBookmarkNotFound  = newKindError(ErrNotFound, "bookmark not found")
	ErrAttributeNotFound = newKindError(ErrNotFound, "attribute not found")

	ErrUserExists        = newKindError(ErrConflict, "a user with this email or username already exists")
	ErrAlreadyBookmarked = newKindError(ErrConflict, "product already bookmarked")
	ErrCategoryExists    = newKindError(ErrConflict, "category already exists")
	ErrAttributeExists   = newKindError(ErrConflict, "attribute already exists")

	ErrDatabaseQuery = errors.New("database query failed")
)

// insertError wraps a failed insert of a row owned by the caller. A foreign
// key violation there means the token outlived its account.
func insertError(err error, what string) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrAccountGone
	}
	return fmt.Errorf("%w: failed to create %s: %v", ErrDatabaseQuery, what, err)
}
