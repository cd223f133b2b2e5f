package recommendations

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/infra/ai/prompt"
	"github.com/bryanwahyu/macrolens/internal/logger"
)

// Fallback is returned when the model cannot be reached. Recommendations are best-effort.
var Fallback = []string{
	"Unable to generate personalized recommendations at this time.",
	"Aim for a balanced plate with vegetables, lean protein, and whole grains.",
}

type Service struct {
	client domai.Client
}

func NewService(client domai.Client) *Service {
	return &Service{client: client}
}

// Result carries the list plus whether it is the fixed fallback.
type Result struct {
	Recommendations []string
	Fallback        bool
}

// Recommend never fails the caller.
func (s *Service) Recommend(ctx context.Context, analysis nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) Result {
	text, err := s.client.Complete(ctx, prompt.GetRecommendationsPrompt(analysis, profile))
	if err != nil {
		logger.Error("error generating recommendations", zap.Error(err))
		out := make([]string, len(Fallback))
		copy(out, Fallback)
		return Result{Recommendations: out, Fallback: true}
	}
	recs := ParseRecommendations(text)
	logger.Info("recommendations generated", zap.Int("count", len(recs)))
	return Result{Recommendations: recs}
}

// ParseRecommendations accepts ["a","b"] or {"recommendations":["a","b"]}.
// Any other shape yields an empty, non-nil list.
func ParseRecommendations(text string) []string {
	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err == nil && arr != nil {
		return arr
	}
	var obj struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Recommendations != nil {
		return obj.Recommendations
	}
	return []string{}
}
