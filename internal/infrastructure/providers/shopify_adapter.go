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

// ShopifyAdapter implements the ProviderClient interface for the Shopify
// Admin REST API. The shop domain comes from the integration config
// ("shop_domain"), falling back to the credential name.
type ShopifyAdapter struct {
	config   *ShopifyConfig
	executor *requestExecutor
	importer integration.RecordImporter
}

// NewShopifyAdapter creates a new Shopify adapter
func NewShopifyAdapter(config *ShopifyConfig, importer integration.RecordImporter) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ShopifyAdapter{
		config:   config,
		executor: newRequestExecutor(integration.ProviderShopify, config.Timeout, config.MaxRetries, extractShopifyRateLimit),
		importer: importer,
	}, nil
}

// extractShopifyRateLimit parses the X-Shopify-Shop-Api-Call-Limit header
// ("32/40": 32 used of 40)
func extractShopifyRateLimit(h http.Header) rateLimitInfo {
	raw := h.Get("X-Shopify-Shop-Api-Call-Limit")
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return rateLimitInfo{}
	}
	used, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	limit, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || limit <= 0 {
		return rateLimitInfo{}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return rateLimitInfo{Remaining: &remaining}
}

// Provider returns the provider this adapter handles
func (a *ShopifyAdapter) Provider() integration.Provider {
	return integration.ProviderShopify
}

func (a *ShopifyAdapter) shopDomain(integ *integration.Integration, cred *integration.Credential) (string, error) {
	if integ != nil {
		if domain := integ.Config["shop_domain"]; domain != "" {
			return domain, nil
		}
	}
	if cred != nil && cred.Name != "" {
		return cred.Name, nil
	}
	return "", ErrShopifyMissingShopDomain
}

func (a *ShopifyAdapter) baseURL(domain string) string {
	if a.config.EndpointOverride != "" {
		return fmt.Sprintf("%s/admin/api/%s", a.config.EndpointOverride, a.config.APIVersion)
	}
	return fmt.Sprintf("https://%s/admin/api/%s", domain, a.config.APIVersion)
}

func (a *ShopifyAdapter) oauthURL(domain string) string {
	if a.config.EndpointOverride != "" {
		return a.config.EndpointOverride + "/admin/oauth/access_token"
	}
	return fmt.Sprintf("https://%s/admin/oauth/access_token", domain)
}

func shopifyHeaders(cred *integration.Credential) http.Header {
	h := http.Header{}
	h.Set("X-Shopify-Access-Token", cred.AccessToken)
	h.Set("Accept", "application/json")
	return h
}

// TestConnection probes GET /shop.json. Provider-side failures come back as
// a failed result, never as an error.
func (a *ShopifyAdapter) TestConnection(ctx context.Context, integ *integration.Integration, cred *integration.Credential) (*integration.ProbeResult, error) {
	domain, err := a.shopDomain(integ, cred)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.executor.execute(ctx, requestSpec{
		Method:     http.MethodGet,
		URL:        a.baseURL(domain) + "/shop.json",
		Header:     shopifyHeaders(cred),
		Idempotent: true,
	})
	latency := time.Since(start)
	if err != nil {
		return probeFailure(latency, err), nil
	}

	var shop ShopifyShopResponse
	if err := json.Unmarshal(resp.Body, &shop); err != nil || shop.Shop == nil {
		return &integration.ProbeResult{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Message:    "unexpected shop.json payload",
		}, nil
	}
	return &integration.ProbeResult{
		Passed:     true,
		Latency:    latency,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("shop %s reachable", shop.Shop.Domain),
	}, nil
}

// Sync pulls the integration's configured categories within the window.
// Pagination follows the Link header cursor; each page is upserted before
// the next is fetched so a mid-run failure keeps what already landed.
func (a *ShopifyAdapter) Sync(ctx context.Context, integ *integration.Integration, cred *integration.Credential, window integration.SyncWindow) (*integration.SyncReport, error) {
	log := logger.FromContext(ctx)

	domain, err := a.shopDomain(integ, cred)
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
		case integration.DataCategoryOrders:
			partial, cerr = a.syncResource(ctx, integ, cred, domain, category, "orders.json", window, decodeShopifyOrders)
		case integration.DataCategoryProducts:
			partial, cerr = a.syncResource(ctx, integ, cred, domain, category, "products.json", window, decodeShopifyProducts)
		case integration.DataCategoryCustomers:
			partial, cerr = a.syncResource(ctx, integ, cred, domain, category, "customers.json", window, decodeShopifyCustomers)
		default:
			log.Debug("category not available on shopify, skipping",
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

// decodeFunc converts one response page into external records
type decodeFunc func(provider integration.Provider, category integration.DataCategory, body []byte) ([]integration.ExternalRecord, error)

func (a *ShopifyAdapter) syncResource(ctx context.Context, integ *integration.Integration, cred *integration.Credential, domain string, category integration.DataCategory, resource string, window integration.SyncWindow, decode decodeFunc) (integration.SyncReport, error) {
	report := integration.SyncReport{}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(a.config.PageSize))
	if !window.Since.IsZero() {
		query.Set("updated_at_min", window.Since.UTC().Format(time.RFC3339))
	}
	if category == integration.DataCategoryOrders {
		query.Set("status", "any")
	}

	pageURL := fmt.Sprintf("%s/%s?%s", a.baseURL(domain), resource, query.Encode())
	for pageURL != "" {
		resp, err := a.executor.execute(ctx, requestSpec{
			Method:     http.MethodGet,
			URL:        pageURL,
			Header:     shopifyHeaders(cred),
			Idempotent: true,
		})
		if err != nil {
			return report, err
		}
		if resp.RateLimit.Remaining != nil {
			integ.ObserveRateLimit(*resp.RateLimit.Remaining, resp.RateLimit.ResetAt)
		}

		records, err := decode(integration.ProviderShopify, category, resp.Body)
		if err != nil {
			return report, err
		}
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

		cursor := nextPageInfo(resp.Header.Get("Link"))
		if cursor == "" {
			break
		}
		next := url.Values{}
		next.Set("limit", strconv.Itoa(a.config.PageSize))
		next.Set("page_info", cursor)
		pageURL = fmt.Sprintf("%s/%s?%s", a.baseURL(domain), resource, next.Encode())
	}
	return report, nil
}

func decodeShopifyOrders(provider integration.Provider, category integration.DataCategory, body []byte) ([]integration.ExternalRecord, error) {
	var resp ShopifyOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: shopify orders: %v", integration.ErrProviderInvalidPayload, err)
	}
	records := make([]integration.ExternalRecord, 0, len(resp.Orders))
	for _, order := range resp.Orders {
		raw, _ := json.Marshal(order)
		records = append(records, integration.ExternalRecord{
			Provider:   provider,
			Category:   category,
			ExternalID: strconv.FormatInt(order.ID, 10),
			NaturalKey: strconv.FormatInt(order.ID, 10),
			Amount:     ParseDecimal(order.TotalPrice),
			Currency:   order.Currency,
			ModifiedAt: order.UpdatedAt,
			Payload:    raw,
		})
	}
	return records, nil
}

func decodeShopifyProducts(provider integration.Provider, category integration.DataCategory, body []byte) ([]integration.ExternalRecord, error) {
	var resp ShopifyProductsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: shopify products: %v", integration.ErrProviderInvalidPayload, err)
	}
	records := make([]integration.ExternalRecord, 0, len(resp.Products))
	for _, product := range resp.Products {
		raw, _ := json.Marshal(product)
		record := integration.ExternalRecord{
			Provider:   provider,
			Category:   category,
			ExternalID: strconv.FormatInt(product.ID, 10),
			NaturalKey: strconv.FormatInt(product.ID, 10),
			ModifiedAt: product.UpdatedAt,
			Payload:    raw,
		}
		if len(product.Variants) > 0 {
			record.Amount = ParseDecimal(product.Variants[0].Price)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeShopifyCustomers(provider integration.Provider, category integration.DataCategory, body []byte) ([]integration.ExternalRecord, error) {
	var resp ShopifyCustomersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: shopify customers: %v", integration.ErrProviderInvalidPayload, err)
	}
	records := make([]integration.ExternalRecord, 0, len(resp.Customers))
	for _, customer := range resp.Customers {
		raw, _ := json.Marshal(customer)
		records = append(records, integration.ExternalRecord{
			Provider:   provider,
			Category:   category,
			ExternalID: strconv.FormatInt(customer.ID, 10),
			NaturalKey: strconv.FormatInt(customer.ID, 10),
			ModifiedAt: customer.UpdatedAt,
			Payload:    raw,
		})
	}
	return records, nil
}

// RefreshToken exchanges the app's client credentials for a new access
// token. Shopify rotates nothing: a missing or empty expires_in means the
// token does not expire.
func (a *ShopifyAdapter) RefreshToken(ctx context.Context, cred *integration.Credential) (*integration.TokenGrant, error) {
	domain, err := a.shopDomain(nil, cred)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     cred.ClientID,
		"client_secret": cred.ClientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := a.executor.execute(ctx, requestSpec{
		Method: http.MethodPost,
		URL:    a.oauthURL(domain),
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return nil, classifyTokenExchangeError(integration.ProviderShopify, err)
	}

	var grant ShopifyAccessTokenResponse
	if err := json.Unmarshal(resp.Body, &grant); err != nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: shopify token exchange", integration.ErrProviderInvalidPayload)
	}

	result := &integration.TokenGrant{AccessToken: grant.AccessToken}
	if grant.ExpiresIn > 0 {
		result.ExpiresAt = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	}
	return result, nil
}

// VerifyWebhook authenticates the delivery with the HMAC digest Shopify
// computes over the raw body
func (a *ShopifyAdapter) VerifyWebhook(payload []byte, headers http.Header) error {
	if !a.config.VerifyWebhookSignature(payload, headers.Get("X-Shopify-Hmac-Sha256")) {
		return integration.ErrWebhookInvalidSig
	}
	return nil
}

// ProcessWebhook interprets a persisted event by topic and upserts the
// carried object. Unknown topics are acknowledged without effect so new
// subscriptions never wedge the queue.
func (a *ShopifyAdapter) ProcessWebhook(ctx context.Context, event *integration.WebhookEvent) error {
	log := logger.FromContext(ctx)

	var (
		records []integration.ExternalRecord
		err     error
	)
	switch {
	case strings.HasPrefix(event.Topic, "orders/"):
		records, err = decodeShopifyWebhookObject(event, integration.DataCategoryOrders)
	case strings.HasPrefix(event.Topic, "products/"):
		records, err = decodeShopifyWebhookObject(event, integration.DataCategoryProducts)
	case strings.HasPrefix(event.Topic, "customers/"):
		records, err = decodeShopifyWebhookObject(event, integration.DataCategoryCustomers)
	default:
		log.Debug("unhandled shopify webhook topic",
			zap.String("topic", event.Topic),
			zap.String("event_id", event.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	_, _, err = a.importer.Upsert(ctx, records)
	return err
}

func decodeShopifyWebhookObject(event *integration.WebhookEvent, category integration.DataCategory) ([]integration.ExternalRecord, error) {
	var object struct {
		ID        int64     `json:"id"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(event.Payload, &object); err != nil || object.ID == 0 {
		return nil, fmt.Errorf("%w: shopify webhook %s", integration.ErrProviderInvalidPayload, event.Topic)
	}
	return []integration.ExternalRecord{{
		Provider:   integration.ProviderShopify,
		Category:   category,
		ExternalID: strconv.FormatInt(object.ID, 10),
		NaturalKey: strconv.FormatInt(object.ID, 10),
		ModifiedAt: object.UpdatedAt,
		Payload:    event.Payload,
	}}, nil
}

// probeFailure converts a taxonomy error into a failed probe result
func probeFailure(latency time.Duration, err error) *integration.ProbeResult {
	result := &integration.ProbeResult{Latency: latency, Message: err.Error()}
	if te, ok := integration.IsTransient(err); ok {
		result.StatusCode = te.StatusCode
	}
	if _, ok := integration.IsAuthentication(err); ok {
		result.StatusCode = http.StatusUnauthorized
	}
	if _, ok := integration.IsRateLimit(err); ok {
		result.StatusCode = http.StatusTooManyRequests
	}
	return result
}

// Ensure ShopifyAdapter implements the ProviderClient interface
var _ integration.ProviderClient = (*ShopifyAdapter)(nil)
