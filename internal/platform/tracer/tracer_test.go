package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgateway/internal/platform/tracer"
)

func TestNoopTracerStart(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanAudit,
		tracer.String(tracer.AttrHost, "app.example.com"),
		tracer.Bool(tracer.AttrAllowed, true),
	)

	// Context comes back unchanged and span methods never panic.
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Int(tracer.AttrStatus, 202))
	span.AddEvent("audit.submitted")
	span.End(nil)
}

func TestNoopSpanEndWithError(t *testing.T) {
	_, span := tracer.NewNoop().Start(context.Background(), tracer.SpanResolve)
	require.NotNil(t, span)
	span.End(errors.New("resolution failed"))
}

func TestDurationIsMilliseconds(t *testing.T) {
	attr := tracer.Duration(tracer.AttrAuditDuration, 1500*time.Millisecond)
	assert.Equal(t, tracer.AttrAuditDuration, attr.Key)
	assert.Equal(t, int64(1500), attr.Value)
}

func TestOTelSpanCarriesAttributes(t *testing.T) {
	tr := tracer.NewOTel()

	_, span := tr.Start(context.Background(), tracer.SpanAuthorize,
		tracer.String(tracer.AttrHost, "app.example.com"),
	)
	require.NotNil(t, span)

	span.SetAttributes(
		tracer.Bool(tracer.AttrOverride, false),
		tracer.Duration(tracer.AttrAuditDuration, time.Millisecond),
		tracer.Int(tracer.AttrStatus, 401),
	)
	span.End(errors.New("denied"))
}
