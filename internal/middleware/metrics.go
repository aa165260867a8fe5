package middleware

import (
	"net/http"
	"time"
)

// HTTPRecorder はレスポンスの記録インターフェース。metrics.Collectorが実装する。
type HTTPRecorder interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
}

// NewMetricsMiddleware はステータスコードと処理時間を記録するミドルウェアを返す。
func NewMetricsMiddleware(recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPRequest(rec.statusCode, time.Since(start))
		})
	}
}
