package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/contactbook-backend/pkg/metrics"
)

// Metrics records request counts and latency labelled by the matched chi
// route pattern, so ids in the path do not explode label cardinality.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, matchedPattern(r), rec.statusCode(), time.Since(start))
		})
	}
}
