package middleware

import (
	"net/http"
	"time"
)

// ResponseRecorder is anything that counts a finished HTTP response.
// Satisfied by *metrics.Collector.
type ResponseRecorder interface {
	RecordHTTPResponse(statusCode int, duration time.Duration)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics instruments every request with status and latency counters.
func Metrics(recorder ResponseRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			recorder.RecordHTTPResponse(sw.status, time.Since(start))
		})
	}
}
