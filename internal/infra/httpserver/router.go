package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/macrolens/internal/application/analysis"
	apprecs "github.com/bryanwahyu/macrolens/internal/application/recommendations"
	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/logger"
	"github.com/bryanwahyu/macrolens/internal/middleware"
)

// maxBodyBytes caps request bodies. The 10MB photo limit is advisory and
// base64 adds a third on top of it.
const maxBodyBytes = 32 << 20

// DegradedHeader marks a default result served because the model output was unusable.
const DegradedHeader = "X-Analysis-Degraded"

type Options struct {
	AllowedOrigins []string
	// Limiter rate-limits /api per client IP. nil disables limiting.
	Limiter  *middleware.RateLimiter
	Checkers map[string]middleware.HealthChecker
}

type Router struct {
	analysisSvc *appanalysis.Service
	recsSvc     *apprecs.Service
	upgrader    websocket.Upgrader
}

func NewRouter(analysisSvc *appanalysis.Service, recsSvc *apprecs.Service, opts Options) http.Handler {
	r := &Router{
		analysisSvc: analysisSvc,
		recsSvc:     recsSvc,
		upgrader:    websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)},
	}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{DegradedHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/health/ready", middleware.ReadinessHandler)
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		if opts.Limiter != nil {
			rt.Use(middleware.RateLimitMiddleware(opts.Limiter))
		}
		rt.Post("/analysis", r.wrap(r.handleAnalysis))
		rt.Post("/recommendations", r.wrap(r.handleRecommendations))
		rt.Post("/export/csv", r.wrap(r.handleExportCSV))
		rt.Post("/export/pdf", r.wrap(r.handleExportPDF))
		rt.Get("/session/ws", r.handleSessionWS)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

var (
	errRecommendations = errors.New("Error generating recommendations")
	errExport          = errors.New("Error exporting analysis")
)

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := publicError(err)
			if status >= http.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.String("request_id", chimw.GetReqID(req.Context())),
					zap.Error(err))
			}
			writeJSON(w, status, errorBody{Message: msg, OK: false})
		}
	}
}

// publicError maps an error to the status and message shown to clients.
// Internal details never reach the body.
func publicError(err error) (int, string) {
	if ue, ok := nutrition.IsUnsafeContent(err); ok {
		return http.StatusForbidden, ue.Error()
	}
	switch {
	case errors.Is(err, nutrition.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid data"
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "AI quota exceeded, please try again later"
	case errors.Is(err, nutrition.ErrAnalysisFailed):
		return http.StatusInternalServerError, "Error analyzing image"
	case errors.Is(err, errRecommendations):
		return http.StatusInternalServerError, errRecommendations.Error()
	case errors.Is(err, errExport):
		return http.StatusInternalServerError, errExport.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(v)
}
