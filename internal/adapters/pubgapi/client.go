package pubgapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pochinki/pochinki/internal/adapters/cache"
	"github.com/pochinki/pochinki/internal/adapters/calllog"
	"github.com/pochinki/pochinki/internal/config"
	"github.com/pochinki/pochinki/internal/constants"
	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/reporting"
)

const RequestTimeout = 30 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the gateway to the stats API.
//
// Every fetch goes through the response cache first. Misses are admitted by the call log
// before any request is sent, and every sent request is recorded in the call log.
type Client struct {
	httpClient HttpClient
	apiKey     string
	shard      string
	baseURL    string

	responseCache cache.Cache[json.RawMessage]
	callLog       calllog.CallLog
	ttls          config.CacheTTLs

	nowFunc func() time.Time

	metrics clientMetricsCollection
}

func NewClient(
	httpClient HttpClient,
	apiKey string,
	shard string,
	baseURL string,
	ttls config.CacheTTLs,
	responseCache cache.Cache[json.RawMessage],
	callLog calllog.CallLog,
	nowFunc func() time.Time,
) (*Client, error) {
	meter := otel.Meter("pubgapi/client")
	metrics, err := setupClientMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		shard:      shard,
		baseURL:    baseURL,

		responseCache: responseCache,
		callLog:       callLog,
		ttls:          ttls,

		nowFunc: nowFunc,

		metrics: metrics,
	}, nil
}

// NewClientOrMock falls back to canned data in development when no API key is configured
func NewClientOrMock(
	conf config.Config,
	httpClient HttpClient,
	responseCache cache.Cache[json.RawMessage],
	callLog calllog.CallLog,
	nowFunc func() time.Time,
) (StatsProvider, error) {
	if conf.PUBGAPIKey() != "" {
		return NewClient(
			httpClient,
			conf.PUBGAPIKey(),
			conf.PUBGShard(),
			conf.PUBGBaseURL(),
			conf.CacheTTLs(),
			responseCache,
			callLog,
			nowFunc,
		)
	}
	if conf.IsDevelopment() {
		return NewMockedProvider(conf.PUBGShard()), nil
	}
	return nil, fmt.Errorf("missing PUBG API key in non-development environment")
}

// endpoint describes one logical fetch
type endpoint struct {
	// Low cardinality name used for metrics
	operation string
	path      string
	cacheKey  string
	ttl       time.Duration
}

// fetch returns the parsed body of the endpoint, from the response cache if possible.
// Only bodies that parse are cached.
func fetch[T any](ctx context.Context, c *Client, e endpoint, parse func([]byte) (T, error)) (T, error) {
	var parsed T
	body, source, err := cache.GetOrCreate(ctx, c.responseCache, e.cacheKey, e.ttl, func() (json.RawMessage, error) {
		data, call, err := c.send(ctx, e)
		if err != nil {
			return nil, err
		}

		parsed, err = parse(data)
		if err != nil {
			err := fmt.Errorf("failed to parse %s response: %w", e.operation, err)
			call.outcome.ErrorMessage = err.Error()
			c.complete(ctx, call.reservation, call.outcome)
			c.metrics.recordOutcome(ctx, e.operation, "malformed")
			reporting.Report(ctx, err, map[string]string{
				"path": e.path,
			})
			return nil, err
		}
		c.complete(ctx, call.reservation, call.outcome)
		c.metrics.recordOutcome(ctx, e.operation, "ok")

		return json.RawMessage(data), nil
	})
	if err != nil {
		var empty T
		return empty, err
	}

	c.metrics.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", e.operation),
		attribute.String("source", source.String()),
	))

	if source == cache.SourceCreated {
		return parsed, nil
	}

	parsed, err = parse(body)
	if err != nil {
		err := fmt.Errorf("failed to parse cached %s response: %w", e.operation, err)
		reporting.Report(ctx, err, map[string]string{
			"cacheKey": e.cacheKey,
		})
		var empty T
		return empty, err
	}
	return parsed, nil
}

// sentCall is a 2xx response whose call record is completed once the body has been parsed
type sentCall struct {
	reservation calllog.Reservation
	outcome     calllog.Outcome
}

// send admits and sends one request. Failed calls are recorded here. For 2xx responses
// the body is returned and the caller completes the record.
func (c *Client) send(ctx context.Context, e endpoint) ([]byte, sentCall, error) {
	logger := logging.FromContext(ctx)

	reservation, err := c.callLog.Reserve(ctx, e.path, http.MethodGet)
	if errors.Is(err, domain.ErrRateLimitExceeded) {
		c.metrics.admissionDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", e.operation)))
		logger.WarnContext(ctx, "Outbound call budget exhausted", slog.String("path", e.path))
		return nil, sentCall{}, fmt.Errorf("%s: %w", e.operation, err)
	}
	if err != nil {
		// NOTE: CallLog implementations handle their own error reporting
		return nil, sentCall{}, fmt.Errorf("failed to reserve call: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.baseURL+e.path, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		c.complete(ctx, reservation, calllog.Outcome{ErrorMessage: err.Error()})
		return nil, sentCall{}, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/vnd.api+json")

	start := c.nowFunc()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		latency := c.nowFunc().Sub(start)
		class, outcome := domain.ErrTransport, "transport"
		if isTimeout(err) {
			class, outcome = domain.ErrTimeout, "timeout"
		}
		err := fmt.Errorf("%w: %w", class, err)

		c.complete(ctx, reservation, calllog.Outcome{Latency: latency, ErrorMessage: err.Error()})
		c.metrics.recordCall(ctx, e.operation, outcome, latency)
		logger.ErrorContext(ctx, "PUBG request failed", slog.String("path", e.path), slog.String("error", err.Error()))
		reporting.Report(ctx, err, map[string]string{
			"path": e.path,
		})
		return nil, sentCall{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	latency := c.nowFunc().Sub(start)
	if err != nil {
		class, outcome := domain.ErrTransport, "transport"
		if isTimeout(err) {
			class, outcome = domain.ErrTimeout, "timeout"
		}
		err := fmt.Errorf("%w: failed to read response body: %w", class, err)

		c.complete(ctx, reservation, calllog.Outcome{StatusCode: resp.StatusCode, Latency: latency, ErrorMessage: err.Error()})
		c.metrics.recordCall(ctx, e.operation, outcome, latency)
		reporting.Report(ctx, err, map[string]string{
			"path":   e.path,
			"status": strconv.Itoa(resp.StatusCode),
		})
		return nil, sentCall{}, err
	}

	logger.InfoContext(ctx, "PUBG request completed",
		slog.String("path", e.path),
		slog.Int("status", resp.StatusCode),
		slog.String("duration", latency.String()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
		}

		c.complete(ctx, reservation, calllog.Outcome{StatusCode: resp.StatusCode, Latency: latency, ErrorMessage: upstreamErr.Error()})
		c.metrics.recordCall(ctx, e.operation, "upstream", latency)

		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusTooManyRequests:
			// Expected, don't report
		default:
			reporting.Report(ctx, upstreamErr, map[string]string{
				"path":   e.path,
				"status": strconv.Itoa(resp.StatusCode),
			})
		}
		return nil, sentCall{}, fmt.Errorf("%s: %w", e.operation, upstreamErr)
	}

	c.metrics.callLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attribute.String("operation", e.operation)))

	return data, sentCall{
		reservation: reservation,
		outcome:     calllog.Outcome{StatusCode: resp.StatusCode, Latency: latency},
	}, nil
}

func (c *Client) complete(ctx context.Context, reservation calllog.Reservation, outcome calllog.Outcome) {
	err := c.callLog.Complete(ctx, reservation, outcome)
	if err != nil {
		// NOTE: CallLog implementations handle their own error reporting
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to record call outcome", slog.String("error", err.Error()))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type clientMetricsCollection struct {
	calls           metric.Int64Counter
	callLatency     metric.Float64Histogram
	cacheLookups    metric.Int64Counter
	admissionDenied metric.Int64Counter
}

func setupClientMetrics(meter metric.Meter) (clientMetricsCollection, error) {
	calls, err := meter.Int64Counter(
		"pubgapi/calls",
		metric.WithDescription("Requests sent to the stats API by outcome"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	callLatency, err := meter.Float64Histogram(
		"pubgapi/call_duration_seconds",
		metric.WithDescription("Latency of requests sent to the stats API"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	cacheLookups, err := meter.Int64Counter(
		"pubgapi/cache_lookups",
		metric.WithDescription("Response cache lookups by hit/miss"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	admissionDenied, err := meter.Int64Counter(
		"pubgapi/admission_denied",
		metric.WithDescription("Fetches rejected because the outbound call budget was used up"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return clientMetricsCollection{
		calls:           calls,
		callLatency:     callLatency,
		cacheLookups:    cacheLookups,
		admissionDenied: admissionDenied,
	}, nil
}

func (m clientMetricsCollection) recordOutcome(ctx context.Context, operation, outcome string) {
	m.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (m clientMetricsCollection) recordCall(ctx context.Context, operation, outcome string, latency time.Duration) {
	m.recordOutcome(ctx, operation, outcome)
	m.callLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attribute.String("operation", operation)))
}
