// Package storage provides object storage implementations for webhook
// payload archival.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/monitor"
	"github.com/syncbridge/backend/internal/domain/integration"
	infraconfig "github.com/syncbridge/backend/internal/infrastructure/config"
)

// Ensure S3EventArchiver implements EventArchiver
var _ monitor.EventArchiver = (*S3EventArchiver)(nil)

// S3EventArchiver archives expired webhook events to S3 before retention
// cleanup deletes them from the database. It is compatible with any
// S3-compatible storage (AWS S3, MinIO, RustFS, etc.)
type S3EventArchiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3EventArchiverOption is a functional option for configuring S3EventArchiver
type S3EventArchiverOption func(*S3EventArchiver)

// WithLogger sets a custom logger for S3EventArchiver
func WithLogger(logger *zap.Logger) S3EventArchiverOption {
	return func(a *S3EventArchiver) {
		a.logger = logger
	}
}

// WithKeyPrefix overrides the default "webhooks" object key prefix
func WithKeyPrefix(prefix string) S3EventArchiverOption {
	return func(a *S3EventArchiver) {
		a.prefix = strings.Trim(prefix, "/")
	}
}

// NewS3EventArchiver creates a new S3EventArchiver from configuration.
// It supports any S3-compatible storage backend.
func NewS3EventArchiver(cfg *infraconfig.StorageConfig, opts ...S3EventArchiverOption) (*S3EventArchiver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	archiver := &S3EventArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: "webhooks",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archiver)
	}
	return archiver, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (a *S3EventArchiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (startup race)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// archivedEvent is the JSON document written for each archived event. The
// raw payload is embedded verbatim when it is valid JSON, base64 otherwise.
type archivedEvent struct {
	ID              string            `json:"id"`
	Provider        string            `json:"provider"`
	Topic           string            `json:"topic"`
	ExternalEventID string            `json:"external_event_id,omitempty"`
	Payload         json.RawMessage   `json:"payload,omitempty"`
	RawPayload      []byte            `json:"raw_payload,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Processed       bool              `json:"processed"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
	RetryCount      int               `json:"retry_count"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
	ArchivedAt      time.Time         `json:"archived_at"`
}

// Archive writes the event as a JSON object under
// {prefix}/{provider}/{yyyy}/{mm}/{dd}/{event id}.json
func (a *S3EventArchiver) Archive(ctx context.Context, event *integration.WebhookEvent) error {
	if event == nil {
		return errors.New("event is required")
	}

	doc := archivedEvent{
		ID:              event.ID.String(),
		Provider:        string(event.Provider),
		Topic:           event.Topic,
		ExternalEventID: event.ExternalEventID,
		Headers:         event.Headers,
		Processed:       event.Processed,
		ProcessedAt:     event.ProcessedAt,
		RetryCount:      event.RetryCount,
		ErrorMessage:    event.ErrorMessage,
		ReceivedAt:      event.ReceivedAt,
		ArchivedAt:      time.Now(),
	}
	if json.Valid(event.Payload) {
		doc.Payload = json.RawMessage(event.Payload)
	} else {
		doc.RawPayload = event.Payload
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode archive document: %w", err)
	}

	key := a.objectKey(event)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive webhook event: %w", err)
	}

	a.logger.Debug("webhook event archived",
		zap.String("event_id", event.ID.String()),
		zap.String("key", key),
	)
	return nil
}

func (a *S3EventArchiver) objectKey(event *integration.WebhookEvent) string {
	return fmt.Sprintf("%s/%s/%s/%s.json",
		a.prefix,
		strings.ToLower(string(event.Provider)),
		event.ReceivedAt.UTC().Format("2006/01/02"),
		event.ID.String(),
	)
}

// GetBucket returns the bucket name
func (a *S3EventArchiver) GetBucket() string {
	return a.bucket
}
