package middleware

import (
	"net/http"

	"github.com/SeanGareth505/JobAssessment/internal/util"
)

// CorrelationID accepts an incoming X-Correlation-ID header (or generates
// one), stores it on the request context for outbox propagation and echoes it
// back on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(util.CorrelationIDHeader)
		if correlationID == "" {
			correlationID = util.NewCorrelationID()
		}
		w.Header().Set(util.CorrelationIDHeader, correlationID)
		ctx := util.WithCorrelationID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
