package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormExternalRecordStore stages normalized provider records in Postgres
// for the downstream import pipeline. It implements the RecordImporter port.
type GormExternalRecordStore struct {
	db *gorm.DB
}

// NewGormExternalRecordStore creates a new GormExternalRecordStore
func NewGormExternalRecordStore(db *gorm.DB) *GormExternalRecordStore {
	return &GormExternalRecordStore{db: db}
}

// Upsert stages the batch keyed by (provider, natural key). Records missing
// an external id fail validation individually; a storage error aborts the
// whole batch.
func (s *GormExternalRecordStore) Upsert(ctx context.Context, records []integration.ExternalRecord) (int, []integration.ValidationError, error) {
	now := time.Now()
	succeeded := 0
	var failures []integration.ValidationError

	for _, rec := range records {
		if rec.ExternalID == "" {
			failures = append(failures, integration.ValidationError{
				Provider: rec.Provider,
				Field:    "external_id",
				Reason:   "missing external id",
			})
			continue
		}

		var model models.ExternalRecordModel
		model.FromRecord(rec, now)
		if model.NaturalKey == "" {
			model.NaturalKey = rec.ExternalID
		}

		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "provider"}, {Name: "natural_key"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"external_id", "category", "amount", "currency",
					"payload", "modified_at", "imported_at",
				}),
			}).
			Create(&model).Error
		if err != nil {
			return succeeded, failures, err
		}
		succeeded++
	}

	return succeeded, failures, nil
}
