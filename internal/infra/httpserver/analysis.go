package httpserver

import (
	"context"
	"fmt"
	"net/http"

	appanalysis "github.com/bryanwahyu/macrolens/internal/application/analysis"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/middleware"
)

type analysisRequest struct {
	Messages []struct {
		Content string `json:"content"`
	} `json:"messages"`
}

// POST /api/analysis
// Body: {"messages": [{"content": "data:image/jpeg;base64,..."}]}
func (r *Router) handleAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body analysisRequest
	if err := decodeBody(w, req, &body); err != nil {
		return fmt.Errorf("%w: %v", nutrition.ErrInvalidInput, err)
	}
	if len(body.Messages) == 0 {
		return nutrition.ErrInvalidInput
	}
	image := body.Messages[0].Content
	if err := middleware.ValidateDataURI(image); err != nil {
		return fmt.Errorf("%w: %v", nutrition.ErrInvalidInput, err)
	}

	out, err := r.analyze(req.Context(), image)
	if err != nil {
		return err
	}
	if out.Degraded {
		w.Header().Set(DegradedHeader, "true")
	}
	return writeJSON(w, http.StatusOK, out.Result)
}

// analyze runs the analysis use-case and records its metrics. Shared by
// the HTTP endpoint and websocket sessions.
func (r *Router) analyze(ctx context.Context, image string) (appanalysis.Outcome, error) {
	middleware.IncrementAnalyses()
	out, err := r.analysisSvc.Analyze(ctx, image)
	switch {
	case err == nil:
		if out.Degraded {
			middleware.IncrementDegraded()
		}
	default:
		if _, ok := nutrition.IsUnsafeContent(err); ok {
			middleware.IncrementFlagged()
		} else {
			middleware.IncrementAnalysisFail()
		}
	}
	return out, err
}

type recommendationsRequest struct {
	FoodAnalysis *nutrition.FoodAnalysisResult `json:"foodAnalysis"`
	UserProfile  *nutrition.UserProfile        `json:"userProfile"`
}

// POST /api/recommendations
// Body: {"foodAnalysis": {...}, "userProfile": {...}}
func (r *Router) handleRecommendations(w http.ResponseWriter, req *http.Request) error {
	var body recommendationsRequest
	if err := decodeBody(w, req, &body); err != nil {
		return fmt.Errorf("%w: %v", errRecommendations, err)
	}
	if body.FoodAnalysis == nil {
		return nutrition.ErrInvalidInput
	}

	res := r.recommend(req.Context(), body.FoodAnalysis.Normalize(), body.UserProfile)
	return writeJSON(w, http.StatusOK, res)
}

func (r *Router) recommend(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) []string {
	res := r.recsSvc.Recommend(ctx, result, middleware.SanitizeProfile(profile))
	middleware.IncrementRecommendations(res.Fallback)
	return res.Recommendations
}
