package repository

import (
	"context"
	"fmt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

// BunFeedbackRepository implements FeedbackRepository using Bun ORM
type BunFeedbackRepository struct {
	db *bun.DB
}

// NewBunFeedbackRepository creates a new Bun-based feedback repository
func NewBunFeedbackRepository(db *bun.DB) *BunFeedbackRepository {
	return &BunFeedbackRepository{db: db}
}

// Create inserts a feedback row
func (r *BunFeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	_, err := r.db.NewInsert().
		Model(feedback).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// Exists reports whether the user already left feedback for the event
func (r *BunFeedbackRepository) Exists(ctx context.Context, userID, eventID int64) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.Feedback)(nil)).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return exists, nil
}

// ListByEvent returns an event's feedback with authors, newest first
func (r *BunFeedbackRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Feedback, error) {
	var feedback []models.Feedback
	err := r.db.NewSelect().
		Model(&feedback).
		Relation("Author").
		Where("f.event_id = ?", eventID).
		Order("f.date_posted DESC", "f.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event feedback: %w", err)
	}
	return feedback, nil
}

// ListByUser returns the feedback a user has written
func (r *BunFeedbackRepository) ListByUser(ctx context.Context, userID int64) ([]models.Feedback, error) {
	var feedback []models.Feedback
	err := r.db.NewSelect().
		Model(&feedback).
		Where("f.user_id = ?", userID).
		Order("f.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user feedback: %w", err)
	}
	return feedback, nil
}
