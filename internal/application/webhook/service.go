package webhook

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
)

// Service ingests inbound provider push notifications. The contract is
// persist-before-process: once a verified delivery is stored, it is
// acknowledged to the provider regardless of whether interpretation succeeds,
// and failed interpretations are retried by the pending sweep.
type Service struct {
	events   integration.WebhookEventRepository
	registry integration.Registry
	dedup    shared.TTLStore
	config   config.WebhookConfig
	logger   *zap.Logger
}

// NewService creates a new webhook Service
func NewService(
	events integration.WebhookEventRepository,
	registry integration.Registry,
	dedup shared.TTLStore,
	cfg config.WebhookConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		events:   events,
		registry: registry,
		dedup:    dedup,
		config:   cfg,
		logger:   logger,
	}
}

// Receive verifies, persists and (best-effort) processes one raw delivery.
// A nil event with a nil error means the delivery was a suppressed duplicate.
// Signature failures come back as ErrWebhookInvalidSig before anything is
// stored; processing failures are NOT returned, the event is already durable.
func (s *Service) Receive(ctx context.Context, provider integration.Provider, topic, externalEventID string, payload []byte, headers http.Header) (*integration.WebhookEvent, error) {
	client, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	if err := client.VerifyWebhook(payload, headers); err != nil {
		s.logger.Warn("rejected webhook delivery",
			zap.String("provider", string(provider)),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil, err
	}

	if externalEventID != "" {
		isNew, err := s.dedup.SetOnce(ctx, string(provider)+":"+externalEventID, s.config.DedupTTL)
		if err != nil {
			// The dedup store is an optimization; interpretation is
			// idempotent by natural key, so a store outage degrades to
			// redundant processing rather than lost deliveries.
			s.logger.Warn("dedup store unavailable", zap.Error(err))
		} else if !isNew {
			s.logger.Debug("suppressed duplicate webhook delivery",
				zap.String("provider", string(provider)),
				zap.String("external_event_id", externalEventID),
			)
			return nil, nil
		}
	}

	event, err := integration.NewWebhookEvent(provider, topic, externalEventID, payload, flattenHeaders(headers))
	if err != nil {
		return nil, err
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, err
	}

	// Inline attempt. Failure is recorded on the row and left to the sweep.
	s.process(ctx, client, event)
	return event, nil
}

// SweepStats summarizes one ProcessPending pass
type SweepStats struct {
	Found     int       `json:"found"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Parked    int       `json:"parked"`
	RanAt     time.Time `json:"ran_at"`
}

// ProcessPending sweeps unprocessed events older than the grace window and
// younger than the retention ceiling, retrying each until its attempt bound.
func (s *Service) ProcessPending(ctx context.Context) (*SweepStats, error) {
	stats := &SweepStats{RanAt: time.Now()}

	graceBefore := stats.RanAt.Add(-s.config.GraceWindow)
	retentionAfter := stats.RanAt.Add(-s.config.RetentionCeiling)

	pending, err := s.events.FindPending(ctx, graceBefore, retentionAfter, s.config.SweepBatchSize)
	if err != nil {
		s.logger.Error("failed to query pending webhook events", zap.Error(err))
		return nil, err
	}
	stats.Found = len(pending)
	if stats.Found == 0 {
		return stats, nil
	}

	for _, event := range pending {
		client, err := s.registry.Get(event.Provider)
		if err != nil {
			s.logger.Error("no adapter for persisted webhook event",
				zap.String("event_id", event.ID.String()),
				zap.String("provider", string(event.Provider)),
			)
			stats.Failed++
			continue
		}

		if s.process(ctx, client, event) {
			stats.Succeeded++
		} else {
			stats.Failed++
			if !event.CanRetry() {
				stats.Parked++
			}
		}
	}

	s.logger.Info("pending webhook sweep finished",
		zap.Int("found", stats.Found),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("parked", stats.Parked),
	)
	return stats, nil
}

// process runs one interpretation attempt and persists the outcome
func (s *Service) process(ctx context.Context, client integration.ProviderClient, event *integration.WebhookEvent) bool {
	ctx = logger.WithContext(ctx, s.logger.With(
		zap.String("event_id", event.ID.String()),
		zap.String("provider", string(event.Provider)),
	))
	if err := client.ProcessWebhook(ctx, event); err != nil {
		event.RecordFailure(err.Error())
		if saveErr := s.events.Save(ctx, event); saveErr != nil {
			s.logger.Error("failed to record webhook processing failure",
				zap.String("event_id", event.ID.String()),
				zap.Error(saveErr),
			)
		}
		if !event.CanRetry() {
			s.logger.Error("webhook event parked after exhausting retries",
				zap.String("event_id", event.ID.String()),
				zap.String("provider", string(event.Provider)),
				zap.String("topic", event.Topic),
				zap.Int("retry_count", event.RetryCount),
			)
		} else {
			s.logger.Warn("webhook processing failed, will retry",
				zap.String("event_id", event.ID.String()),
				zap.String("topic", event.Topic),
				zap.Int("retry_count", event.RetryCount),
				zap.Error(err),
			)
		}
		return false
	}

	event.MarkProcessed(time.Now())
	if err := s.events.Save(ctx, event); err != nil {
		s.logger.Error("failed to finalize processed webhook event",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
	}
	return true
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}
	return flat
}
