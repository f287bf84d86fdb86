package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// CredentialModel is the persistence model for the Credential domain entity.
// Exactly one active row exists per (provider, name); the partial unique
// index lives in the SQL migration.
type CredentialModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primary_key"`
	Provider      integration.Provider `gorm:"type:varchar(20);not null;index:idx_credential_provider_name,priority:1"`
	Name          string               `gorm:"type:varchar(100);not null;index:idx_credential_provider_name,priority:2"`
	ClientID      string               `gorm:"type:varchar(255);not null"`
	ClientSecret  string               `gorm:"type:varchar(255);not null"`
	AccessToken   string               `gorm:"type:text"`
	RefreshToken  string               `gorm:"type:text"`
	ExpiresAt     *time.Time           `gorm:"index"`
	Environment   string               `gorm:"type:varchar(20);not null;default:'production'"`
	IsActive      bool                 `gorm:"not null;default:true"`
	Unusable      bool                 `gorm:"not null;default:false"`
	UnusableCause string               `gorm:"type:text"`
	CreatedAt     time.Time            `gorm:"not null"`
	UpdatedAt     time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "provider_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *integration.Credential {
	cred := &integration.Credential{
		ID:            m.ID,
		Provider:      m.Provider,
		Name:          m.Name,
		ClientID:      m.ClientID,
		ClientSecret:  m.ClientSecret,
		AccessToken:   m.AccessToken,
		RefreshToken:  m.RefreshToken,
		Environment:   integration.CredentialEnvironment(m.Environment),
		IsActive:      m.IsActive,
		Unusable:      m.Unusable,
		UnusableCause: m.UnusableCause,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ExpiresAt != nil {
		cred.ExpiresAt = *m.ExpiresAt
	}
	return cred
}

// FromDomain populates the model from a domain Credential
func (m *CredentialModel) FromDomain(cred *integration.Credential) {
	m.ID = cred.ID
	m.Provider = cred.Provider
	m.Name = cred.Name
	m.ClientID = cred.ClientID
	m.ClientSecret = cred.ClientSecret
	m.AccessToken = cred.AccessToken
	m.RefreshToken = cred.RefreshToken
	if cred.ExpiresAt.IsZero() {
		m.ExpiresAt = nil
	} else {
		expires := cred.ExpiresAt
		m.ExpiresAt = &expires
	}
	m.Environment = string(cred.Environment)
	m.IsActive = cred.IsActive
	m.Unusable = cred.Unusable
	m.UnusableCause = cred.UnusableCause
	m.CreatedAt = cred.CreatedAt
	m.UpdatedAt = cred.UpdatedAt
}

// IntegrationModel is the persistence model for the Integration domain entity.
type IntegrationModel struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	CredentialID uuid.UUID            `gorm:"type:uuid;not null;index"`
	Provider     integration.Provider `gorm:"type:varchar(20);not null;index"`
	Kind         string               `gorm:"type:varchar(20);not null"`
	Name         string               `gorm:"type:varchar(100);not null"`

	SyncFrequencySeconds int64      `gorm:"not null"`
	LastSyncAt           *time.Time `gorm:"index"`
	NextSyncAt           *time.Time `gorm:"index:idx_integration_due,priority:2"`

	Status       integration.IntegrationStatus `gorm:"type:varchar(20);not null;default:'INACTIVE';index"`
	ErrorMessage string                        `gorm:"type:text"`
	RetryCount   int                           `gorm:"not null;default:0"`

	RateLimitRemaining *int
	RateLimitResetAt   *time.Time

	CategoriesJSON string `gorm:"type:jsonb;column:categories"`
	ConfigJSON     string `gorm:"type:jsonb;column:config"`

	IsActive  bool      `gorm:"not null;default:false;index:idx_integration_due,priority:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration
func (m *IntegrationModel) ToDomain() *integration.Integration {
	integ := &integration.Integration{
		ID:                 m.ID,
		CredentialID:       m.CredentialID,
		Provider:           m.Provider,
		Kind:               integration.IntegrationKind(m.Kind),
		Name:               m.Name,
		SyncFrequency:      time.Duration(m.SyncFrequencySeconds) * time.Second,
		LastSyncAt:         m.LastSyncAt,
		NextSyncAt:         m.NextSyncAt,
		Status:             m.Status,
		ErrorMessage:       m.ErrorMessage,
		RetryCount:         m.RetryCount,
		RateLimitRemaining: m.RateLimitRemaining,
		RateLimitResetAt:   m.RateLimitResetAt,
		Categories:         make([]integration.DataCategory, 0),
		Config:             make(map[string]string),
		IsActive:           m.IsActive,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.CategoriesJSON != "" {
		var categories []integration.DataCategory
		if err := json.Unmarshal([]byte(m.CategoriesJSON), &categories); err == nil {
			integ.Categories = categories
		}
	}
	if m.ConfigJSON != "" {
		var cfg map[string]string
		if err := json.Unmarshal([]byte(m.ConfigJSON), &cfg); err == nil {
			integ.Config = cfg
		}
	}
	return integ
}

// FromDomain populates the model from a domain Integration
func (m *IntegrationModel) FromDomain(integ *integration.Integration) {
	m.ID = integ.ID
	m.CredentialID = integ.CredentialID
	m.Provider = integ.Provider
	m.Kind = string(integ.Kind)
	m.Name = integ.Name
	m.SyncFrequencySeconds = int64(integ.SyncFrequency / time.Second)
	m.LastSyncAt = integ.LastSyncAt
	m.NextSyncAt = integ.NextSyncAt
	m.Status = integ.Status
	m.ErrorMessage = integ.ErrorMessage
	m.RetryCount = integ.RetryCount
	m.RateLimitRemaining = integ.RateLimitRemaining
	m.RateLimitResetAt = integ.RateLimitResetAt
	if data, err := json.Marshal(integ.Categories); err == nil {
		m.CategoriesJSON = string(data)
	}
	if data, err := json.Marshal(integ.Config); err == nil {
		m.ConfigJSON = string(data)
	}
	m.IsActive = integ.IsActive
	m.CreatedAt = integ.CreatedAt
	m.UpdatedAt = integ.UpdatedAt
}

// SyncLogModel is the persistence model for the SyncLog domain entity.
// Rows stop changing once the status is final.
type SyncLogModel struct {
	ID            uuid.UUID                 `gorm:"type:uuid;primary_key"`
	IntegrationID uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_log_integration,priority:1"`
	Kind          string                    `gorm:"type:varchar(20);not null"`
	Status        integration.SyncLogStatus `gorm:"type:varchar(20);not null"`
	StartedAt     time.Time                 `gorm:"not null;index:idx_sync_log_integration,priority:2,sort:desc"`
	CompletedAt   *time.Time

	RecordsProcessed int `gorm:"not null;default:0"`
	RecordsSucceeded int `gorm:"not null;default:0"`
	RecordsFailed    int `gorm:"not null;default:0"`

	ErrorMessage string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	return &integration.SyncLog{
		ID:               m.ID,
		IntegrationID:    m.IntegrationID,
		Kind:             integration.SyncKind(m.Kind),
		Status:           m.Status,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		RecordsProcessed: m.RecordsProcessed,
		RecordsSucceeded: m.RecordsSucceeded,
		RecordsFailed:    m.RecordsFailed,
		ErrorMessage:     m.ErrorMessage,
	}
}

// FromDomain populates the model from a domain SyncLog
func (m *SyncLogModel) FromDomain(log *integration.SyncLog) {
	m.ID = log.ID
	m.IntegrationID = log.IntegrationID
	m.Kind = string(log.Kind)
	m.Status = log.Status
	m.StartedAt = log.StartedAt
	m.CompletedAt = log.CompletedAt
	m.RecordsProcessed = log.RecordsProcessed
	m.RecordsSucceeded = log.RecordsSucceeded
	m.RecordsFailed = log.RecordsFailed
	m.ErrorMessage = log.ErrorMessage
}

// WebhookEventModel is the persistence model for the WebhookEvent domain
// entity. The row is written before any interpretation so no inbound
// notification is lost.
type WebhookEventModel struct {
	ID              uuid.UUID            `gorm:"type:uuid;primary_key"`
	Provider        integration.Provider `gorm:"type:varchar(20);not null;index"`
	Topic           string               `gorm:"type:varchar(100);not null"`
	ExternalEventID string               `gorm:"type:varchar(255);index"`
	Payload         []byte               `gorm:"type:bytea"`
	HeadersJSON     string               `gorm:"type:jsonb;column:headers"`

	Processed    bool `gorm:"not null;default:false;index:idx_webhook_pending,priority:1"`
	ProcessedAt  *time.Time
	RetryCount   int    `gorm:"not null;default:0"`
	ErrorMessage string `gorm:"type:text"`

	ReceivedAt time.Time `gorm:"not null;index:idx_webhook_pending,priority:2"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *integration.WebhookEvent {
	event := &integration.WebhookEvent{
		ID:              m.ID,
		Provider:        m.Provider,
		Topic:           m.Topic,
		ExternalEventID: m.ExternalEventID,
		Payload:         m.Payload,
		Headers:         make(map[string]string),
		Processed:       m.Processed,
		ProcessedAt:     m.ProcessedAt,
		RetryCount:      m.RetryCount,
		ErrorMessage:    m.ErrorMessage,
		ReceivedAt:      m.ReceivedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.HeadersJSON != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(m.HeadersJSON), &headers); err == nil {
			event.Headers = headers
		}
	}
	return event
}

// FromDomain populates the model from a domain WebhookEvent
func (m *WebhookEventModel) FromDomain(event *integration.WebhookEvent) {
	m.ID = event.ID
	m.Provider = event.Provider
	m.Topic = event.Topic
	m.ExternalEventID = event.ExternalEventID
	m.Payload = event.Payload
	if data, err := json.Marshal(event.Headers); err == nil {
		m.HeadersJSON = string(data)
	}
	m.Processed = event.Processed
	m.ProcessedAt = event.ProcessedAt
	m.RetryCount = event.RetryCount
	m.ErrorMessage = event.ErrorMessage
	m.ReceivedAt = event.ReceivedAt
	m.UpdatedAt = event.UpdatedAt
}

// HealthCheckModel is the persistence model for the HealthCheck domain
// entity. Rows never update; retention cleanup is the only delete path.
type HealthCheckModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	IntegrationID uuid.UUID `gorm:"type:uuid;not null;index:idx_health_check_integration,priority:1"`
	Passed        bool      `gorm:"not null"`
	LatencyMillis int64     `gorm:"not null;default:0"`
	StatusCode    int       `gorm:"not null;default:0"`
	Message       string    `gorm:"type:text"`
	CheckedAt     time.Time `gorm:"not null;index:idx_health_check_integration,priority:2,sort:desc"`
}

// TableName returns the table name for GORM
func (HealthCheckModel) TableName() string {
	return "health_checks"
}

// ToDomain converts the persistence model to a domain HealthCheck
func (m *HealthCheckModel) ToDomain() *integration.HealthCheck {
	return &integration.HealthCheck{
		ID:            m.ID,
		IntegrationID: m.IntegrationID,
		Passed:        m.Passed,
		Latency:       time.Duration(m.LatencyMillis) * time.Millisecond,
		StatusCode:    m.StatusCode,
		Message:       m.Message,
		CheckedAt:     m.CheckedAt,
	}
}

// FromDomain populates the model from a domain HealthCheck
func (m *HealthCheckModel) FromDomain(check *integration.HealthCheck) {
	m.ID = check.ID
	m.IntegrationID = check.IntegrationID
	m.Passed = check.Passed
	m.LatencyMillis = check.Latency.Milliseconds()
	m.StatusCode = check.StatusCode
	m.Message = check.Message
	m.CheckedAt = check.CheckedAt
}
