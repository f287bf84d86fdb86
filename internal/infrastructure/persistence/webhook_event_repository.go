package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Save persists a webhook event, inserting or updating by primary key
func (r *GormWebhookEventRepository) Save(ctx context.Context, event *integration.WebhookEvent) error {
	var model models.WebhookEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a webhook event by its ID
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrWebhookEventNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending selects unprocessed events ready for a processing attempt,
// oldest first. Events received after graceBefore are skipped so the
// processor never races an in-flight delivery; events at the retry bound
// stay parked until retention cleanup collects them.
func (r *GormWebhookEventRepository) FindPending(ctx context.Context, graceBefore, retentionAfter time.Time, limit int) ([]*integration.WebhookEvent, error) {
	query := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Where("received_at < ? AND received_at > ?", graceBefore, retentionAfter).
		Where("retry_count < ?", integration.MaxWebhookAttempts).
		Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var eventModels []models.WebhookEventModel
	if err := query.Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]*integration.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events, nil
}

// CountStuck counts unprocessed events older than the delay threshold,
// including permanently parked ones
func (r *GormWebhookEventRepository) CountStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("processed = ? AND received_at < ?", false, olderThan).
		Count(&count).Error
	return count, err
}

// FindTerminalOlderThan returns processed or retry-exhausted events received
// before the cutoff, oldest first, for archival and deletion
func (r *GormWebhookEventRepository) FindTerminalOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*integration.WebhookEvent, error) {
	query := r.db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Where("processed = ? OR retry_count >= ?", true, integration.MaxWebhookAttempts).
		Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var eventModels []models.WebhookEventModel
	if err := query.Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]*integration.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events, nil
}

// Delete removes a webhook event by ID
func (r *GormWebhookEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.WebhookEventModel{}).Error
}

// Ensure GormWebhookEventRepository implements the interface
var _ integration.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
