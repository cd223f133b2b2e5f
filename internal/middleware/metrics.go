package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics holds process-wide counters exposed on /metrics.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	AnalysesTotal    uint64
	AnalysesFlagged  uint64
	AnalysesDegraded uint64
	AnalysesFailed   uint64

	RecommendationsTotal     uint64
	RecommendationsFallbacks uint64

	ExportsCSV    uint64
	ExportsPDF    uint64
	ExportsFailed uint64

	SessionsActive uint64

	StartTime time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()     { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress()   { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress()   { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()      { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()       { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }
func IncrementAnalyses()     { atomic.AddUint64(&globalMetrics.AnalysesTotal, 1) }
func IncrementFlagged()      { atomic.AddUint64(&globalMetrics.AnalysesFlagged, 1) }
func IncrementDegraded()     { atomic.AddUint64(&globalMetrics.AnalysesDegraded, 1) }
func IncrementAnalysisFail() { atomic.AddUint64(&globalMetrics.AnalysesFailed, 1) }

// IncrementRecommendations counts a recommendations request; fallback
// marks that the fixed list was served.
func IncrementRecommendations(fallback bool) {
	atomic.AddUint64(&globalMetrics.RecommendationsTotal, 1)
	if fallback {
		atomic.AddUint64(&globalMetrics.RecommendationsFallbacks, 1)
	}
}

// IncrementExports counts a finished export by format ("csv" or "pdf").
func IncrementExports(format string, failed bool) {
	if failed {
		atomic.AddUint64(&globalMetrics.ExportsFailed, 1)
		return
	}
	switch format {
	case "csv":
		atomic.AddUint64(&globalMetrics.ExportsCSV, 1)
	case "pdf":
		atomic.AddUint64(&globalMetrics.ExportsPDF, 1)
	}
}

func IncrementSessions() { atomic.AddUint64(&globalMetrics.SessionsActive, 1) }
func DecrementSessions() { atomic.AddUint64(&globalMetrics.SessionsActive, ^uint64(0)) }

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":            atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":      atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":          atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":           atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":            atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_flagged":          atomic.LoadUint64(&globalMetrics.AnalysesFlagged),
		"analyses_degraded":         atomic.LoadUint64(&globalMetrics.AnalysesDegraded),
		"analyses_failed":           atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"recommendations_total":     atomic.LoadUint64(&globalMetrics.RecommendationsTotal),
		"recommendations_fallbacks": atomic.LoadUint64(&globalMetrics.RecommendationsFallbacks),
		"exports_csv":               atomic.LoadUint64(&globalMetrics.ExportsCSV),
		"exports_pdf":               atomic.LoadUint64(&globalMetrics.ExportsPDF),
		"exports_failed":            atomic.LoadUint64(&globalMetrics.ExportsFailed),
		"sessions_active":           atomic.LoadUint64(&globalMetrics.SessionsActive),
		"uptime_seconds":            time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
