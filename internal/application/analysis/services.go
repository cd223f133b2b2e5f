package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/logger"
)

// Service runs the analysis use-case: moderation, vision call, parse.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	client    domai.Client
	moderator domai.Moderator
}

// NewService wires the generation client. moderator may be nil to skip moderation.
func NewService(client domai.Client, moderator domai.Moderator) *Service {
	return &Service{client: client, moderator: moderator}
}

// Outcome is what Analyze hands back to the transport layer.
type Outcome struct {
	ID     string
	Result nutrition.FoodAnalysisResult
	// Degraded is set when the model output could not be parsed and Result is the default.
	Degraded bool
}

// Analyze moderates the image (if configured), asks the model for a breakdown
// and shapes the answer into a FoodAnalysisResult.
func (s *Service) Analyze(ctx context.Context, image string) (Outcome, error) {
	if strings.TrimSpace(image) == "" {
		return Outcome{}, nutrition.ErrInvalidInput
	}
	id := uuid.New().String()
	log := logger.L().With(zap.String("analysis_id", id))

	if s.moderator != nil {
		if err := s.moderate(ctx, log, image); err != nil {
			return Outcome{ID: id}, err
		}
	}

	text, err := s.client.AnalyzeImage(ctx, image)
	if err != nil {
		log.Error("error analyzing food image", zap.Error(err))
		if errors.Is(err, domai.ErrQuotaExceeded) {
			return Outcome{ID: id}, fmt.Errorf("%w: %w", nutrition.ErrAnalysisFailed, domai.ErrQuotaExceeded)
		}
		return Outcome{ID: id}, fmt.Errorf("%w: %v", nutrition.ErrAnalysisFailed, err)
	}

	result, err := ParseResult(text)
	if err != nil {
		log.Warn("model output is not valid JSON, returning default result", zap.Error(err))
		return Outcome{ID: id, Result: nutrition.DefaultResult(), Degraded: true}, nil
	}

	log.Info("analysis complete",
		zap.Int("items", len(result.FoodItems)),
		zap.String("confidence", string(result.ConfidenceLevel)))
	return Outcome{ID: id, Result: result}, nil
}

// moderate fails closed: a moderation outage counts as flagged with no
// categories. Provider quota errors are reported as such instead.
func (s *Service) moderate(ctx context.Context, log *zap.Logger, image string) error {
	res, err := s.moderator.Moderate(ctx, image)
	if err != nil {
		log.Error("error moderating image", zap.Error(err))
		if errors.Is(err, domai.ErrQuotaExceeded) {
			return fmt.Errorf("%w: %w", nutrition.ErrAnalysisFailed, domai.ErrQuotaExceeded)
		}
		return &nutrition.UnsafeContentError{Categories: []string{}}
	}
	if res.Flagged {
		log.Warn("image flagged by moderation", zap.Strings("categories", res.Categories))
		return &nutrition.UnsafeContentError{Categories: res.Categories}
	}
	return nil
}

// ParseResult decodes model text into a normalized result. A single
// surrounding ``` fence is tolerated.
func ParseResult(text string) (nutrition.FoodAnalysisResult, error) {
	var r nutrition.FoodAnalysisResult
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &r); err != nil {
		return nutrition.FoodAnalysisResult{}, err
	}
	return r.Normalize(), nil
}

// StripCodeFence removes a leading ```json / ``` line and a trailing ``` if present.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		return ""
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
