// Package client talks to the macrolens HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/macrolens/internal/application/recommendations"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/logger"
)

const (
	defaultTimeout = 2 * time.Minute

	// DegradedHeader is set by the server when the result is the default
	// placeholder because the model output could not be parsed.
	DegradedHeader = "X-Analysis-Degraded"
)

const defaultAnalysisMessage = "Failed to analyze food image"

// APIError carries the server's message for a non-2xx response. Err is the
// domain error it stands for, if any.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient gets a
// default with a two minute timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type analysisRequest struct {
	Messages []analysisMessage `json:"messages"`
}

type analysisMessage struct {
	Content string `json:"content"`
}

type errorBody struct {
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// AnalyzeFoodImage posts the data URI to /api/analysis. The bool reports
// whether the server marked the result as degraded.
func (c *Client) AnalyzeFoodImage(ctx context.Context, dataURI string) (nutrition.FoodAnalysisResult, bool, error) {
	body := analysisRequest{Messages: []analysisMessage{{Content: dataURI}}}
	resp, err := c.post(ctx, "/api/analysis", body)
	if err != nil {
		return nutrition.FoodAnalysisResult{}, false, fmt.Errorf("%w: %v", nutrition.ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nutrition.FoodAnalysisResult{}, false, apiError(resp, defaultAnalysisMessage, nutrition.ErrAnalysisFailed)
	}

	var result nutrition.FoodAnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nutrition.FoodAnalysisResult{}, false, fmt.Errorf("%w: decode response: %v", nutrition.ErrAnalysisFailed, err)
	}
	return result.Normalize(), resp.Header.Get(DegradedHeader) == "true", nil
}

type recommendationsRequest struct {
	FoodAnalysis nutrition.FoodAnalysisResult `json:"foodAnalysis"`
	UserProfile  *nutrition.UserProfile       `json:"userProfile,omitempty"`
}

// GenerateDietaryRecommendations never fails: any transport or decode
// problem yields the fixed fallback list.
func (c *Client) GenerateDietaryRecommendations(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) []string {
	recs, err := c.recommendations(ctx, result, profile)
	if err != nil {
		logger.Warn("error generating recommendations", zap.Error(err))
		return append([]string(nil), recommendations.Fallback...)
	}
	return recs
}

func (c *Client) recommendations(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) ([]string, error) {
	resp, err := c.post(ctx, "/api/recommendations", recommendationsRequest{FoodAnalysis: result, UserProfile: profile})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, apiError(resp, "Error generating recommendations", nil)
	}
	var recs []string
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// apiError reads a {message, ok} body, falling back to fallback when the
// body has no usable message.
func apiError(resp *http.Response, fallback string, kind error) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	msg := fallback
	if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
		msg = eb.Message
	}
	return &APIError{Status: resp.StatusCode, Message: msg, Err: kind}
}
