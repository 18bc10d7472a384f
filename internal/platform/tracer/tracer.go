// Package tracer is a lightweight tracing abstraction for the arbitration
// pipeline. It keeps the decision path decoupled from OpenTelemetry APIs:
// production wires the OTel adapter, tests use the no-op tracer.
package tracer

import (
	"context"
	"time"
)

// Span tracks the execution of a single operation.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the arbitration pipeline.
const (
	SpanAuthorize = "arbiter.authorize"
	SpanAudited   = "arbiter.audited"
	SpanResolve   = "session.resolve"
	SpanAudit     = "auditor.submit"
)

// Attribute keys used by the arbitration pipeline.
const (
	AttrHost          = "request.host"
	AttrSessionType   = "session.type"
	AttrAllowed       = "decision.allowed"
	AttrWhitelisted   = "decision.whitelisted"
	AttrOverride      = "auditor.override"
	AttrAuditDuration = "auditor.duration_ms"
	AttrStatus        = "response.status"
)
