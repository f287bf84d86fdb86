package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// ExternalRecordModel stages normalized provider records for the downstream
// import pipeline. Upsert is keyed by (provider, natural_key) so webhook
// redelivery and overlapping sync windows never duplicate a record.
type ExternalRecordModel struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key"`
	Provider   integration.Provider `gorm:"type:varchar(20);not null;uniqueIndex:idx_external_record_key,priority:1"`
	Category   string               `gorm:"type:varchar(20);not null;index"`
	ExternalID string               `gorm:"type:varchar(255);not null"`
	NaturalKey string               `gorm:"type:varchar(512);not null;uniqueIndex:idx_external_record_key,priority:2"`
	Amount     decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0"`
	Currency   string               `gorm:"type:varchar(10)"`
	Payload    []byte               `gorm:"type:bytea"`
	ModifiedAt time.Time            `gorm:"not null;index"`
	ImportedAt time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExternalRecordModel) TableName() string {
	return "external_records"
}

// FromRecord populates the model from a normalized provider record
func (m *ExternalRecordModel) FromRecord(rec integration.ExternalRecord, now time.Time) {
	m.ID = uuid.New()
	m.Provider = rec.Provider
	m.Category = string(rec.Category)
	m.ExternalID = rec.ExternalID
	m.NaturalKey = rec.NaturalKey
	m.Amount = rec.Amount
	m.Currency = rec.Currency
	m.Payload = rec.Payload
	m.ModifiedAt = rec.ModifiedAt
	m.ImportedAt = now
}
