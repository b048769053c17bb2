package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

// ModerationNotifier emails review authors when a moderator decides on their review.
type ModerationNotifier struct {
	db     *gorm.DB
	mailer Mailer
}

func NewModerationNotifier(db *gorm.DB, mailer Mailer) *ModerationNotifier {
	return &ModerationNotifier{db: db, mailer: mailer}
}

// HandleEvent processes one message from the review queue.
func (n *ModerationNotifier) HandleEvent(routingKey string, body []byte) error {
	var event ReviewEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed %s event: %w", routingKey, err)
	}

	entry := logger.WithFields(logrus.Fields{
		"event":     routingKey,
		"review_id": event.ReviewID,
	})

	if routingKey != EventReviewModerated {
		entry.Debug("event ignored")
		return nil
	}

	var review models.Review
	if err := n.db.Preload("User").Where("id = ?", event.ReviewID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleted since the event was published
			entry.Info("review no longer exists")
			return nil
		}
		return err
	}
	if review.User == nil {
		return nil
	}

	if err := n.mailer.SendModerationEmail(review.User.Email, review.Title, event.ModerationStatus, event.ModerationNote); err != nil {
		return fmt.Errorf("failed to send moderation email: %w", err)
	}

	entry.Info("moderation email sent")
	return nil
}
