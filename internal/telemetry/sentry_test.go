package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, root := StartTransaction(context.Background(), "reload snomed", "vocab.reload")
	defer root.End()

	childCtx, child := StartSpan(ctx, "LookupService.Lookup", SpanAttributes{System: "snomed", Attempt: 2})
	defer child.End()

	span := sentry.SpanFromContext(childCtx)
	require.NotNil(t, span)
	assert.Equal(t, root.inner.SpanID, span.ParentSpanID)
	assert.Equal(t, "snomed", span.Tags["vocab.system"])
	assert.Equal(t, 2, span.Data["attempt"])
}

func TestStartSpan_WithoutParentStartsTransaction(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "ResolutionService.Resolve", SpanAttributes{ResolutionID: "r1"})
	defer span.End()

	inner := sentry.SpanFromContext(ctx)
	require.NotNil(t, inner)
	assert.Equal(t, sentry.SpanID{}, inner.ParentSpanID)
	assert.Equal(t, "r1", inner.Tags["resolution_id"])
}

func TestSpan_SetError(t *testing.T) {
	_, span := StartSpan(context.Background(), "oracle.Evaluate", SpanAttributes{})
	span.SetError(errors.New("boom"))
	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)
	span.End()

	var nilSpan *Span
	nilSpan.SetError(errors.New("ignored"))
	nilSpan.End()
}

func TestSampler(t *testing.T) {
	sample := sampler(0.25)

	health := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("GET /health"))
	defer health.Finish()
	assert.Zero(t, sample(sentry.SamplingContext{Span: health}))

	root := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("GET /lookup-code"))
	defer root.Finish()
	assert.Equal(t, 0.25, sample(sentry.SamplingContext{Span: root}))
}

func TestCaptureHelpersWithoutClient(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		CaptureError(ctx, errors.New("reload failed"))
		AddBreadcrumb(ctx, "resolution", "attempt 1 failed")
	})
}
