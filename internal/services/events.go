package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
)

const (
	EventReviewSubmitted = "review.submitted"
	EventReviewModerated = "review.moderated"
	EventReviewDeleted   = "review.deleted"
)

// EventPublisher is satisfied by *rabbitmq.Client.
type EventPublisher interface {
	Publish(routingKey string, payload interface{}) error
}

type ReviewEvent struct {
	ReviewID         string    `json:"review_id"`
	ProductID        string    `json:"product_id"`
	UserID           string    `json:"user_id"`
	ModerationStatus string    `json:"moderation_status"`
	ModerationNote   string    `json:"moderation_note,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func publishEvent(publisher EventPublisher, routingKey string, event ReviewEvent) {
	if publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := publisher.Publish(routingKey, event); err != nil {
		logWarn("failed to publish "+routingKey, err)
	}
}

func logWarn(msg string, err error) {
	logger.WithFields(logrus.Fields{"error": err.Error()}).Warn(msg)
}
