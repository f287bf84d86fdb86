package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
)

// QuickBooksAdapter implements the ProviderClient interface for the
// QuickBooks Online API. The company realm id comes from the integration
// config ("realm_id").
type QuickBooksAdapter struct {
	config   *QuickBooksConfig
	executor *requestExecutor
	importer integration.RecordImporter
}

// NewQuickBooksAdapter creates a new QuickBooks adapter
func NewQuickBooksAdapter(config *QuickBooksConfig, importer integration.RecordImporter) (*QuickBooksAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &QuickBooksAdapter{
		config:   config,
		executor: newRequestExecutor(integration.ProviderQuickBooks, config.Timeout, config.MaxRetries, nil),
		importer: importer,
	}, nil
}

// Provider returns the provider this adapter handles
func (a *QuickBooksAdapter) Provider() integration.Provider {
	return integration.ProviderQuickBooks
}

func (a *QuickBooksAdapter) realmID(integ *integration.Integration) (string, error) {
	if integ == nil || integ.Config["realm_id"] == "" {
		return "", ErrQuickBooksMissingRealmID
	}
	return integ.Config["realm_id"], nil
}

func quickBooksHeaders(cred *integration.Credential) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+cred.AccessToken)
	h.Set("Accept", "application/json")
	return h
}

// TestConnection probes GET /companyinfo for the integration's realm
func (a *QuickBooksAdapter) TestConnection(ctx context.Context, integ *integration.Integration, cred *integration.Credential) (*integration.ProbeResult, error) {
	realm, err := a.realmID(integ)
	if err != nil {
		return nil, err
	}

	probeURL := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s?minorversion=%s",
		a.config.Endpoint, realm, realm, a.config.MinorVersion)

	start := time.Now()
	resp, err := a.executor.execute(ctx, requestSpec{
		Method:     http.MethodGet,
		URL:        probeURL,
		Header:     quickBooksHeaders(cred),
		Idempotent: true,
	})
	latency := time.Since(start)
	if err != nil {
		return probeFailure(latency, err), nil
	}

	var info QuickBooksCompanyInfoResponse
	if err := json.Unmarshal(resp.Body, &info); err != nil || info.CompanyInfo == nil {
		return &integration.ProbeResult{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Message:    "unexpected companyinfo payload",
		}, nil
	}
	return &integration.ProbeResult{
		Passed:     true,
		Latency:    latency,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("company %s reachable", info.CompanyInfo.CompanyName),
	}, nil
}

// Sync pulls invoices and customers modified within the window via the
// query endpoint, paged with STARTPOSITION.
func (a *QuickBooksAdapter) Sync(ctx context.Context, integ *integration.Integration, cred *integration.Credential, window integration.SyncWindow) (*integration.SyncReport, error) {
	log := logger.FromContext(ctx)

	realm, err := a.realmID(integ)
	if err != nil {
		return nil, err
	}

	report := &integration.SyncReport{}
	for _, category := range integ.Categories {
		var (
			partial integration.SyncReport
			cerr    error
		)
		switch category {
		case integration.DataCategoryInvoices:
			partial, cerr = a.syncEntity(ctx, integ, cred, realm, category, "Invoice", window)
		case integration.DataCategoryCustomers:
			partial, cerr = a.syncEntity(ctx, integ, cred, realm, category, "Customer", window)
		default:
			log.Debug("category not available on quickbooks, skipping",
				zap.String("category", category.String()),
				zap.String("integration_id", integ.ID.String()))
			continue
		}
		if cerr != nil {
			return report, cerr
		}
		report.Add(partial)
	}
	return report, nil
}

func (a *QuickBooksAdapter) syncEntity(ctx context.Context, integ *integration.Integration, cred *integration.Credential, realm string, category integration.DataCategory, entity string, window integration.SyncWindow) (integration.SyncReport, error) {
	report := integration.SyncReport{}

	position := 1
	for {
		statement := fmt.Sprintf("SELECT * FROM %s", entity)
		if !window.Since.IsZero() {
			statement += fmt.Sprintf(" WHERE MetaData.LastUpdatedTime > '%s'", window.Since.UTC().Format(time.RFC3339))
		}
		statement += fmt.Sprintf(" STARTPOSITION %d MAXRESULTS %d", position, a.config.PageSize)

		query := url.Values{}
		query.Set("query", statement)
		query.Set("minorversion", a.config.MinorVersion)

		resp, err := a.executor.execute(ctx, requestSpec{
			Method:     http.MethodGet,
			URL:        fmt.Sprintf("%s/v3/company/%s/query?%s", a.config.Endpoint, realm, query.Encode()),
			Header:     quickBooksHeaders(cred),
			Idempotent: true,
		})
		if err != nil {
			return report, err
		}

		var page QuickBooksQueryResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return report, fmt.Errorf("%w: quickbooks %s query", integration.ErrProviderInvalidPayload, entity)
		}

		records := quickBooksRecords(category, &page)
		if len(records) == 0 {
			break
		}

		succeeded, failures, err := a.importer.Upsert(ctx, records)
		if err != nil {
			return report, err
		}
		report.Processed += len(records)
		report.Succeeded += succeeded
		report.Failed += len(failures)
		report.Failures = append(report.Failures, failures...)

		if len(records) < a.config.PageSize {
			break
		}
		position += a.config.PageSize
	}
	return report, nil
}

func quickBooksRecords(category integration.DataCategory, page *QuickBooksQueryResponse) []integration.ExternalRecord {
	var records []integration.ExternalRecord
	switch category {
	case integration.DataCategoryInvoices:
		for _, invoice := range page.QueryResponse.Invoice {
			raw, _ := json.Marshal(invoice)
			record := integration.ExternalRecord{
				Provider:   integration.ProviderQuickBooks,
				Category:   category,
				ExternalID: invoice.ID,
				NaturalKey: invoice.ID,
				Amount:     decimal.NewFromFloat(invoice.TotalAmt),
				ModifiedAt: invoice.MetaData.LastUpdatedTime,
				Payload:    raw,
			}
			if invoice.CurrencyRef != nil {
				record.Currency = invoice.CurrencyRef.Value
			}
			records = append(records, record)
		}
	case integration.DataCategoryCustomers:
		for _, customer := range page.QueryResponse.Customer {
			raw, _ := json.Marshal(customer)
			records = append(records, integration.ExternalRecord{
				Provider:   integration.ProviderQuickBooks,
				Category:   category,
				ExternalID: customer.ID,
				NaturalKey: customer.ID,
				ModifiedAt: customer.MetaData.LastUpdatedTime,
				Payload:    raw,
			})
		}
	}
	return records
}

// RefreshToken exchanges the stored refresh token at the bearer endpoint.
// Intuit rotates refresh tokens on every exchange; the rotated value comes
// back in the grant.
func (a *QuickBooksAdapter) RefreshToken(ctx context.Context, cred *integration.Credential) (*integration.TokenGrant, error) {
	if cred.RefreshToken == "" {
		return nil, integration.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	basic := base64.StdEncoding.EncodeToString([]byte(cred.ClientID + ":" + cred.ClientSecret))
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Authorization", "Basic "+basic)
	header.Set("Accept", "application/json")

	resp, err := a.executor.execute(ctx, requestSpec{
		Method: http.MethodPost,
		URL:    a.config.AuthURL,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return nil, classifyTokenExchangeError(integration.ProviderQuickBooks, err)
	}

	var grant QuickBooksTokenResponse
	if err := json.Unmarshal(resp.Body, &grant); err != nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: quickbooks token exchange", integration.ErrProviderInvalidPayload)
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

// VerifyWebhook authenticates the delivery with the HMAC digest Intuit
// computes over the raw body
func (a *QuickBooksAdapter) VerifyWebhook(payload []byte, headers http.Header) error {
	if !a.config.VerifyWebhookSignature(payload, headers.Get("Intuit-Signature")) {
		return integration.ErrWebhookInvalidSig
	}
	return nil
}

// ProcessWebhook interprets a persisted Intuit delivery. Entities arrive as
// (name, id) change markers; each becomes an upsert keyed by the entity id.
func (a *QuickBooksAdapter) ProcessWebhook(ctx context.Context, event *integration.WebhookEvent) error {
	log := logger.FromContext(ctx)

	var payload QuickBooksWebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("%w: quickbooks webhook", integration.ErrProviderInvalidPayload)
	}

	var records []integration.ExternalRecord
	for _, notification := range payload.EventNotifications {
		for _, entity := range notification.DataChangeEvent.Entities {
			var category integration.DataCategory
			switch entity.Name {
			case "Invoice":
				category = integration.DataCategoryInvoices
			case "Customer":
				category = integration.DataCategoryCustomers
			default:
				log.Debug("unhandled quickbooks entity",
					zap.String("entity", entity.Name),
					zap.String("event_id", event.ID.String()))
				continue
			}

			modifiedAt := event.ReceivedAt
			if at, err := time.Parse("2006-01-02T15:04:05-0700", entity.LastUpdated); err == nil {
				modifiedAt = at
			}

			raw, _ := json.Marshal(entity)
			records = append(records, integration.ExternalRecord{
				Provider:   integration.ProviderQuickBooks,
				Category:   category,
				ExternalID: entity.ID,
				NaturalKey: entity.ID,
				ModifiedAt: modifiedAt,
				Payload:    raw,
			})
		}
	}
	if len(records) == 0 {
		return nil
	}

	_, _, err := a.importer.Upsert(ctx, records)
	return err
}

// Ensure QuickBooksAdapter implements the ProviderClient interface
var _ integration.ProviderClient = (*QuickBooksAdapter)(nil)
