package events

import "context"

type ctxKey int

const correlationIDKey ctxKey = iota

// EnvelopeMetadata carries the request context copied onto emitted events.
type EnvelopeMetadata struct {
	CorrelationID string
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

func MetadataFromContext(ctx context.Context) EnvelopeMetadata {
	return EnvelopeMetadata{CorrelationID: CorrelationIDFromContext(ctx)}
}
