package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

func IsValidModerationStatus(status string) bool {
	switch status {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

type Review struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID            string    `json:"product_id" gorm:"type:varchar(36);not null;index"`
	UserID               string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Title                string    `json:"title" gorm:"type:varchar(200);not null"`
	Body                 string    `json:"body" gorm:"type:text;not null"`
	OverallRating        int       `json:"overall_rating" gorm:"not null;check:overall_rating >= 1 AND overall_rating <= 5"`
	SustainabilityRating *int      `json:"sustainability_rating" gorm:"check:sustainability_rating IS NULL OR (sustainability_rating >= 1 AND sustainability_rating <= 5)"`
	EthicalRating        *int      `json:"ethical_rating" gorm:"check:ethical_rating IS NULL OR (ethical_rating >= 1 AND ethical_rating <= 5)"`
	DurabilityRating     *int      `json:"durability_rating" gorm:"check:durability_rating IS NULL OR (durability_rating >= 1 AND durability_rating <= 5)"`
	ModerationStatus     string    `json:"moderation_status" gorm:"type:varchar(20);not null;default:pending;index;check:moderation_status IN ('pending','approved','rejected')"`
	ModerationNote       string    `json:"moderation_note,omitempty"`
	HelpfulCount         int       `json:"helpful_count" gorm:"default:0"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	// AuthorName is filled from User; the user itself is never exposed with a review.
	AuthorName string `json:"author_name" gorm:"-"`

	// Relations
	User    *User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Product *Product      `json:"product,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Photos  []ReviewPhoto `json:"photos" gorm:"constraint:OnDelete:CASCADE"`
	Votes   []ReviewVote  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReviewPhoto is unattached (ReviewID nil) between upload and review submission.
type ReviewPhoto struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReviewID    *string   `json:"review_id" gorm:"type:varchar(36);index"`
	UserID      string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	URL         string    `json:"url" gorm:"not null"`
	StorageKey  string    `json:"-" gorm:"not null"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *ReviewPhoto) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type ReviewVote struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_review_votes_user_review"`
	ReviewID  string    `json:"review_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_review_votes_user_review"`
	IsHelpful bool      `json:"is_helpful"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// One vote per user per review
func (ReviewVote) TableName() string {
	return "review_votes"
}

func (v *ReviewVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
