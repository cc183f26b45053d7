// Package telemetry wraps Sentry tracing for lookups, resolutions and
// vocabulary reloads. Every helper is a no-op until Init is called with a DSN.
package telemetry

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const serverName = "vocabd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a flush function.
// An empty DSN or a failed init leaves tracing disabled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops health probes, keeps child spans with their parent and
// samples root transactions at rate.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if strings.HasSuffix(ctx.Span.Name, " /health") {
			return 0
		}
		if ctx.Span.ParentSpanID != (sentry.SpanID{}) {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes tags a span with the vocabulary and resolution it serves.
type SpanAttributes struct {
	System       string
	ResolutionID string
	Attempt      int
	Operation    string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.System != "" {
		span.SetTag("vocab.system", a.System)
	}
	if a.ResolutionID != "" {
		span.SetTag("resolution_id", a.ResolutionID)
	}
	if a.Attempt > 0 {
		span.SetData("attempt", a.Attempt)
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a started Sentry span.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

// StartTransaction starts a root span for background work such as reloads.
func StartTransaction(ctx context.Context, name, op string) (context.Context, *Span) {
	span := sentry.StartSpan(ctx, op, sentry.WithTransactionName(name), sentry.WithOpName(op))
	return span.Context(), &Span{inner: span}
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err on the hub in ctx.
func CaptureError(ctx context.Context, err error) {
	hubFor(ctx).CaptureException(err)
}

// AddBreadcrumb records a step of a resolution on the hub in ctx.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
