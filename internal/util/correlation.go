package util

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// CorrelationIDHeader is the header carrying the correlation id across HTTP
// requests and broker messages.
const CorrelationIDHeader = "X-Correlation-ID"

type correlationKey struct{}

func NewCorrelationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored on the context,
// or an empty string when the call did not originate from a traced request.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
