package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/pochinki/pochinki/internal/config"
	"github.com/pochinki/pochinki/internal/logging"
)

type sanitizeRule struct {
	rx          *regexp.Regexp
	replacement string
}

// Identifiers vary between otherwise identical errors, so they are masked before fingerprinting
var sanitizeRules = []sanitizeRule{
	{regexp.MustCompile(`account\.[0-9a-f]{32}`), "<account>"},
	{regexp.MustCompile(`[0-9a-f]{8}-?([0-9a-f]{4}-?){3}[0-9a-f]{12}`), "<uuid>"},
	{regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`), "<host>"},
	{regexp.MustCompile(`filter\[playerNames\]=[^"&\s]+`), "filter[playerNames]=<names>"},
	{regexp.MustCompile(`filter\[playerIds\]=[^"&\s]+`), "filter[playerIds]=<ids>"},
	{regexp.MustCompile(`division\.bro\.official\.[0-9a-z.-]+`), "<season>"},
}

func sanitizeError(err string) string {
	for _, rule := range sanitizeRules {
		err = rule.rx.ReplaceAllString(err, rule.replacement)
	}
	return err
}

// WithHub attaches a fresh sentry hub to contexts that don't originate from an http request
func WithHub(ctx context.Context) context.Context {
	if sentry.HasHubOnContext(ctx) {
		return ctx
	}
	ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	return setStartedAtInContext(ctx, time.Now())
}

// Report logs err and sends it to sentry along with the reporting meta in ctx.
// Call it where the error happens, callers further up only log.
func Report(ctx context.Context, err error, extras ...map[string]string) {
	if err == nil {
		err = errors.New("No error provided")
	}

	logger := logging.FromContext(ctx)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		logger.WarnContext(ctx, "No Sentry hub in context", slog.String("error", err.Error()), slog.Any("extras", extras))
		return
	}

	logger.ErrorContext(ctx, "Reporting error to Sentry", slog.String("error", err.Error()), slog.Any("extras", extras))

	hub.WithScope(func(scope *sentry.Scope) {
		applyMeta(scope, MetaFromContext(ctx), extras)
		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

func applyMeta(scope *sentry.Scope, meta ReportingMeta, extras []map[string]string) {
	scope.SetTags(meta.tags)
	for key, value := range meta.extras {
		scope.SetExtra(key, value)
	}
	if meta.playerID != "" {
		scope.SetTag("player_id", meta.playerID)
	}
	if !meta.startedAt.IsZero() {
		scope.SetExtra("secondsSinceStart", time.Since(meta.startedAt).Seconds())
	}

	for _, extra := range extras {
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
	}
}

func addMetaMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "<missing>"
		}
		// The mux pattern keeps the tag low cardinality
		route := r.Pattern
		if route == "" {
			route = fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}

		ctx := AddTagsToContext(r.Context(), map[string]string{
			"userAgent": userAgent,
			"route":     route,
		})
		ctx = setStartedAtInContext(ctx, time.Now())

		next(w, r.WithContext(ctx))
	}
}

func InitSentryMiddleware(sentryDSN string, environment string) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
	})
	if err != nil {
		return nil, nil, err
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})

	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		return sentryHandler.HandleFunc(addMetaMiddleware(next))
	}

	flush := func() {
		sentry.Flush(5 * time.Second)
	}

	return middleware, flush, nil
}

func NewSentryMiddlewareOrMock(conf config.Config) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	if conf.SentryDSN() != "" {
		return InitSentryMiddleware(conf.SentryDSN(), conf.Environment())
	}

	if conf.IsDevelopment() {
		middleware := func(next http.HandlerFunc) http.HandlerFunc {
			return addMetaMiddleware(next)
		}
		return middleware, func() {}, nil
	}

	return nil, nil, fmt.Errorf("Missing Sentry DSN in non-development environment")
}
