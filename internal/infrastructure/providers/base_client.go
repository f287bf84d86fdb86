package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed provider response size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultRateLimitBackoff is used when a 429 arrives without a usable
// Retry-After header
const defaultRateLimitBackoff = 60 * time.Second

// rateLimitInfo carries the throttling signals a provider exposes in
// response headers. Both fields are optional.
type rateLimitInfo struct {
	Remaining *int
	ResetAt   *time.Time
}

// providerResponse is a fully read provider response.
type providerResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RateLimit  rateLimitInfo
}

// requestSpec describes one outbound call. Body is buffered so the request
// can be rebuilt on retry.
type requestSpec struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	// Idempotent requests are retried on transient failures; everything
	// else gets exactly one attempt.
	Idempotent bool
}

// requestExecutor is the shared transport layer under every provider
// adapter: bounded timeouts, retry with exponential backoff for idempotent
// requests, and classification of provider failures into the engine's error
// taxonomy.
type requestExecutor struct {
	provider   integration.Provider
	httpClient *http.Client
	maxRetries int
	// extractRateLimit pulls provider-specific throttle headers off
	// successful responses; nil when the provider exposes none.
	extractRateLimit func(http.Header) rateLimitInfo
}

func newRequestExecutor(provider integration.Provider, timeout time.Duration, maxRetries int, extract func(http.Header) rateLimitInfo) *requestExecutor {
	return &requestExecutor{
		provider:         provider,
		httpClient:       &http.Client{Timeout: timeout},
		maxRetries:       maxRetries,
		extractRateLimit: extract,
	}
}

// execute performs the request. 429 responses return a RateLimitError
// immediately: honoring the provider's reset signal beats burning the retry
// budget against a closed door. 401/403 return an AuthenticationError.
// Network failures, timeouts and 5xx responses are retried with exponential
// backoff for idempotent requests, then surface as a TransientRequestError.
func (e *requestExecutor) execute(ctx context.Context, spec requestSpec) (resp *providerResponse, err error) {
	log := logger.FromContext(ctx)

	ctx, span := telemetry.StartClientSpan(ctx, "provider.request",
		telemetry.AttrProvider.String(e.provider.String()),
		telemetry.AttrHTTPMethod.String(spec.Method),
	)
	defer func() {
		if resp != nil {
			span.SetAttributes(telemetry.AttrHTTPStatusCode.Int(resp.StatusCode))
		}
		telemetry.EndSpan(span, err)
	}()

	// Catch malformed URLs before entering the retry loop.
	if _, err := http.NewRequest(spec.Method, spec.URL, nil); err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", e.provider, err)
	}

	attempts := 0
	lastStatus := 0

	operation := func() error {
		attempts++

		req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, bytes.NewReader(spec.Body))
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range spec.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		httpResp, err := e.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Debug("provider request attempt failed",
				zap.String("provider", e.provider.String()),
				zap.String("url", spec.URL),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("%s: failed to read response: %w", e.provider, err)
		}
		lastStatus = httpResp.StatusCode

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(&integration.RateLimitError{
				Provider: e.provider,
				ResetAt:  e.resolveRateLimitReset(httpResp.Header, time.Now()),
			})
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&integration.AuthenticationError{
				Provider: e.provider,
				Reason:   fmt.Sprintf("HTTP %d", httpResp.StatusCode),
			})
		case httpResp.StatusCode >= 500:
			return fmt.Errorf("%s: HTTP %d", e.provider, httpResp.StatusCode)
		case httpResp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: %s HTTP %d: %s",
				integration.ErrProviderInvalidPayload, e.provider, httpResp.StatusCode, truncateBody(body)))
		}

		result := &providerResponse{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
		}
		if e.extractRateLimit != nil {
			result.RateLimit = e.extractRateLimit(httpResp.Header)
		}
		resp = result
		return nil
	}

	var policy backoff.BackOff
	if spec.Idempotent && e.maxRetries > 0 {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = 500 * time.Millisecond
		expo.MaxInterval = 10 * time.Second
		policy = backoff.WithMaxRetries(expo, uint64(e.maxRetries))
	} else {
		policy = &backoff.StopBackOff{}
	}
	policy = backoff.WithContext(policy, ctx)

	// backoff.Retry unwraps Permanent errors, so taxonomy errors come back
	// exactly as the operation returned them.
	if err := backoff.Retry(operation, policy); err != nil {
		if _, ok := integration.IsRateLimit(err); ok {
			return nil, err
		}
		if _, ok := integration.IsAuthentication(err); ok {
			return nil, err
		}
		if errors.Is(err, integration.ErrProviderInvalidPayload) {
			return nil, err
		}
		return nil, &integration.TransientRequestError{
			Provider:   e.provider,
			StatusCode: lastStatus,
			Attempts:   attempts,
			Err:        err,
		}
	}
	return resp, nil
}

// resolveRateLimitReset resolves a 429 response to the time calls may resume:
// Retry-After when present, the provider's own reset header otherwise, then a
// conservative default.
func (e *requestExecutor) resolveRateLimitReset(h http.Header, now time.Time) time.Time {
	if at, ok := parseRetryAfter(h, now); ok {
		return at
	}
	if e.extractRateLimit != nil {
		if info := e.extractRateLimit(h); info.ResetAt != nil {
			return *info.ResetAt
		}
	}
	return now.Add(defaultRateLimitBackoff)
}

// parseRetryAfter parses a Retry-After header in either delta-seconds or
// HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) (time.Time, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if at, err := http.ParseTime(raw); err == nil {
		return at, true
	}
	return time.Time{}, false
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
