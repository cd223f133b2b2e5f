// Package rekognition moderates meal photos with AWS Rekognition content
// moderation instead of the OpenAI moderation endpoint.
package rekognition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/imageenc"
)

const defaultMinConfidence = 75

// API is the subset of *rekognition.Client the moderator needs.
type API interface {
	DetectModerationLabels(ctx context.Context, in *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
}

type Moderator struct {
	api           API
	minConfidence float32
}

// New builds a moderator from the default AWS credential chain.
func New(ctx context.Context, region string, minConfidence float32) (*Moderator, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(rekognition.NewFromConfig(cfg), minConfidence), nil
}

func NewWithAPI(api API, minConfidence float32) *Moderator {
	if minConfidence <= 0 {
		minConfidence = defaultMinConfidence
	}
	return &Moderator{api: api, minConfidence: minConfidence}
}

// Moderate flags the image when Rekognition returns any moderation label at
// or above the configured confidence. Categories are the distinct top-level
// label names, lowercased.
func (m *Moderator) Moderate(ctx context.Context, dataURI string) (domai.ModerationResult, error) {
	_, data, err := imageenc.Decode(dataURI)
	if err != nil {
		return domai.ModerationResult{}, err
	}

	out, err := m.api.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: data},
		MinConfidence: aws.Float32(m.minConfidence),
	})
	if err != nil {
		if throttled(err) {
			return domai.ModerationResult{}, fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		}
		return domai.ModerationResult{}, err
	}

	return domai.ModerationResult{
		Flagged:    len(out.ModerationLabels) > 0,
		Categories: categories(out.ModerationLabels),
	}, nil
}

func categories(labels []types.ModerationLabel) []string {
	seen := make(map[string]struct{})
	for _, l := range labels {
		name := aws.ToString(l.ParentName)
		if name == "" {
			name = aws.ToString(l.Name)
		}
		if name == "" {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func throttled(err error) bool {
	var (
		te *types.ThrottlingException
		pe *types.ProvisionedThroughputExceededException
		le *types.LimitExceededException
	)
	return errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &le)
}
