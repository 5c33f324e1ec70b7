// Package tracer is a small tracing interface so issuance code can emit spans
// without importing OpenTelemetry directly. NoopTracer serves tests;
// OTelTracer serves production.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashIdentifier shortens a personal identifier, such as a document number,
// to a correlation token that can go on a span.
func HashIdentifier(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:8])
}

const (
	SpanCallback      = "issuance.callback"
	SpanVendorSession = "vendor.session"
	SpanVendorMedia   = "vendor.media"
	SpanSign          = "issuance.sign"
	SpanDeliver       = "issuance.deliver"
)

const (
	AttrSessionID       = "session_id"
	AttrVendorSessionID = "vendor_session_id"
	AttrAttempts        = "attempts"
	AttrDocumentType    = "document_type"
	AttrOutcome         = "outcome"
	AttrStatusCode      = "http.status_code"
)

const (
	EventRetry        = "retry"
	EventAuditEmitted = "audit.emitted"
)
