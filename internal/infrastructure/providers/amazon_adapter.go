package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
)

// amazonGrantlessScope is the LWA scope used when no seller refresh token is
// stored
const amazonGrantlessScope = "sellingpartnerapi::notifications"

// AmazonAdapter implements the ProviderClient interface for the Amazon
// Selling Partner API. The marketplace id comes from the integration config
// ("marketplace_id").
type AmazonAdapter struct {
	config   *AmazonConfig
	executor *requestExecutor
	importer integration.RecordImporter
}

// NewAmazonAdapter creates a new Amazon adapter
func NewAmazonAdapter(config *AmazonConfig, importer integration.RecordImporter) (*AmazonAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AmazonAdapter{
		config: config,
		// SP-API exposes request rates, not a remaining-calls budget, so
		// there is nothing to extract from successful responses.
		executor: newRequestExecutor(integration.ProviderAmazon, config.Timeout, config.MaxRetries, nil),
		importer: importer,
	}, nil
}

// Provider returns the provider this adapter handles
func (a *AmazonAdapter) Provider() integration.Provider {
	return integration.ProviderAmazon
}

func amazonHeaders(cred *integration.Credential) http.Header {
	h := http.Header{}
	h.Set("x-amz-access-token", cred.AccessToken)
	h.Set("Accept", "application/json")
	return h
}

// TestConnection probes GET /sellers/v1/marketplaceParticipations
func (a *AmazonAdapter) TestConnection(ctx context.Context, integ *integration.Integration, cred *integration.Credential) (*integration.ProbeResult, error) {
	start := time.Now()
	resp, err := a.executor.execute(ctx, requestSpec{
		Method:     http.MethodGet,
		URL:        a.config.Endpoint + "/sellers/v1/marketplaceParticipations",
		Header:     amazonHeaders(cred),
		Idempotent: true,
	})
	latency := time.Since(start)
	if err != nil {
		return probeFailure(latency, err), nil
	}

	var participations AmazonParticipationsResponse
	if err := json.Unmarshal(resp.Body, &participations); err != nil {
		return &integration.ProbeResult{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Message:    "unexpected participations payload",
		}, nil
	}
	return &integration.ProbeResult{
		Passed:     true,
		Latency:    latency,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%d marketplace participations", len(participations.Payload)),
	}, nil
}

// Sync pulls orders modified within the window. Other configured categories
// have no SP-API pull implementation here and are skipped.
func (a *AmazonAdapter) Sync(ctx context.Context, integ *integration.Integration, cred *integration.Credential, window integration.SyncWindow) (*integration.SyncReport, error) {
	log := logger.FromContext(ctx)

	report := &integration.SyncReport{}
	for _, category := range integ.Categories {
		if category != integration.DataCategoryOrders {
			log.Debug("category not available on amazon, skipping",
				zap.String("category", category.String()),
				zap.String("integration_id", integ.ID.String()))
			continue
		}

		partial, err := a.syncOrders(ctx, integ, cred, window)
		if err != nil {
			return report, err
		}
		report.Add(partial)
	}
	return report, nil
}

func (a *AmazonAdapter) syncOrders(ctx context.Context, integ *integration.Integration, cred *integration.Credential, window integration.SyncWindow) (integration.SyncReport, error) {
	report := integration.SyncReport{}

	marketplaceID := integ.Config["marketplace_id"]
	if marketplaceID == "" {
		return report, fmt.Errorf("%w: amazon integration %s has no marketplace_id", integration.ErrProviderNotConfigured, integ.ID)
	}

	nextToken := ""
	for {
		query := url.Values{}
		query.Set("MarketplaceIds", marketplaceID)
		query.Set("MaxResultsPerPage", strconv.Itoa(a.config.PageSize))
		if nextToken != "" {
			query.Set("NextToken", nextToken)
		} else if !window.Since.IsZero() {
			query.Set("LastUpdatedAfter", window.Since.UTC().Format(time.RFC3339))
		}

		resp, err := a.executor.execute(ctx, requestSpec{
			Method:     http.MethodGet,
			URL:        a.config.Endpoint + "/orders/v0/orders?" + query.Encode(),
			Header:     amazonHeaders(cred),
			Idempotent: true,
		})
		if err != nil {
			return report, err
		}

		var page AmazonOrdersResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil || page.Payload == nil {
			return report, fmt.Errorf("%w: amazon orders", integration.ErrProviderInvalidPayload)
		}

		records := make([]integration.ExternalRecord, 0, len(page.Payload.Orders))
		for _, order := range page.Payload.Orders {
			raw, _ := json.Marshal(order)
			record := integration.ExternalRecord{
				Provider:   integration.ProviderAmazon,
				Category:   integration.DataCategoryOrders,
				ExternalID: order.AmazonOrderID,
				NaturalKey: order.AmazonOrderID,
				ModifiedAt: order.LastUpdateDate,
				Payload:    raw,
			}
			if order.OrderTotal != nil {
				record.Amount = ParseDecimal(order.OrderTotal.Amount)
				record.Currency = order.OrderTotal.CurrencyCode
			}
			records = append(records, record)
		}

		if len(records) > 0 {
			succeeded, failures, err := a.importer.Upsert(ctx, records)
			if err != nil {
				return report, err
			}
			report.Processed += len(records)
			report.Succeeded += succeeded
			report.Failed += len(failures)
			report.Failures = append(report.Failures, failures...)
		}

		nextToken = page.Payload.NextToken
		if nextToken == "" {
			break
		}
	}
	return report, nil
}

// RefreshToken performs the LWA exchange: refresh-token grant when a seller
// refresh token is stored, grantless client credentials otherwise.
// invalid_grant and invalid_client responses mean the credential is dead
// until an operator re-authorizes.
func (a *AmazonAdapter) RefreshToken(ctx context.Context, cred *integration.Credential) (*integration.TokenGrant, error) {
	form := url.Values{}
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	if cred.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", cred.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
		form.Set("scope", amazonGrantlessScope)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.executor.execute(ctx, requestSpec{
		Method: http.MethodPost,
		URL:    a.config.AuthURL,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return nil, classifyTokenExchangeError(integration.ProviderAmazon, err)
	}

	var grant AmazonTokenResponse
	if err := json.Unmarshal(resp.Body, &grant); err != nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: amazon token exchange", integration.ErrProviderInvalidPayload)
	}

	result := &integration.TokenGrant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}
	if grant.ExpiresIn > 0 {
		result.ExpiresAt = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	}
	return result, nil
}

// VerifyWebhook checks the structural envelope of an SP-API notification.
// Amazon does not sign destination deliveries with a shared secret; the
// notification id and type are the authenticity anchors available here.
func (a *AmazonAdapter) VerifyWebhook(payload []byte, headers http.Header) error {
	var notification AmazonNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return integration.ErrWebhookInvalidSig
	}
	if notification.NotificationType == "" || notification.NotificationMetadata.NotificationID == "" {
		return integration.ErrWebhookInvalidSig
	}
	return nil
}

// ProcessWebhook interprets a persisted SP-API notification
func (a *AmazonAdapter) ProcessWebhook(ctx context.Context, event *integration.WebhookEvent) error {
	log := logger.FromContext(ctx)

	var notification AmazonNotification
	if err := json.Unmarshal(event.Payload, &notification); err != nil {
		return fmt.Errorf("%w: amazon notification", integration.ErrProviderInvalidPayload)
	}

	change := notification.Payload.OrderChangeNotification
	if notification.NotificationType != "ORDER_CHANGE" || change == nil {
		log.Debug("unhandled amazon notification type",
			zap.String("notification_type", notification.NotificationType),
			zap.String("event_id", event.ID.String()))
		return nil
	}

	modifiedAt := event.ReceivedAt
	if at, err := time.Parse(time.RFC3339, notification.EventTime); err == nil {
		modifiedAt = at
	}

	_, _, err := a.importer.Upsert(ctx, []integration.ExternalRecord{{
		Provider:   integration.ProviderAmazon,
		Category:   integration.DataCategoryOrders,
		ExternalID: change.AmazonOrderID,
		NaturalKey: change.AmazonOrderID,
		ModifiedAt: modifiedAt,
		Payload:    event.Payload,
	}})
	return err
}

// classifyTokenExchangeError upgrades OAuth error responses that indicate a
// dead credential to a permanent AuthenticationError
func classifyTokenExchangeError(provider integration.Provider, err error) error {
	if ae, ok := integration.IsAuthentication(err); ok {
		ae.Permanent = true
		return ae
	}
	msg := err.Error()
	if strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "invalid_client") {
		return &integration.AuthenticationError{
			Provider:  provider,
			Permanent: true,
			Reason:    "token exchange rejected",
		}
	}
	return err
}

// Ensure AmazonAdapter implements the ProviderClient interface
var _ integration.ProviderClient = (*AmazonAdapter)(nil)
