package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	appanalysis "github.com/bryanwahyu/macrolens/internal/application/analysis"
	apprecs "github.com/bryanwahyu/macrolens/internal/application/recommendations"
	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/middleware"
)

type fakeAI struct {
	analyzeText  string
	analyzeErr   error
	completeText string
	completeErr  error
}

func (f *fakeAI) AnalyzeImage(ctx context.Context, dataURI string) (string, error) {
	return f.analyzeText, f.analyzeErr
}

func (f *fakeAI) Complete(ctx context.Context, prompt string) (string, error) {
	return f.completeText, f.completeErr
}

type fakeModerator struct {
	res domai.ModerationResult
	err error
}

func (f *fakeModerator) Moderate(ctx context.Context, dataURI string) (domai.ModerationResult, error) {
	return f.res, f.err
}

const (
	image      = "data:image/jpeg;base64,/9j/4AAQ"
	mealJSON   = `{"foodItems":[{"name":"Salmon","portion":{"humanReadable":"1 fillet","grams":150,"ounces":5.3},"macros":{"calories":280,"protein":39,"fat":13,"carbs":0,"sugar":0,"fiber":0}}],"totalMacros":{"calories":280,"protein":39,"fat":13,"carbs":0,"sugar":0,"fiber":0},"confidenceLevel":"Medium"}`
	exportBody = `{"foodAnalysis":` + mealJSON + `,"recommendations":["Add greens"]}`
)

func setupRouter(t *testing.T, ai *fakeAI, mod domai.Moderator, opts Options) http.Handler {
	t.Helper()
	return NewRouter(appanalysis.NewService(ai, mod), apprecs.NewService(ai), opts)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func analysisBody(content string) string {
	b, _ := json.Marshal(map[string]any{"messages": []map[string]string{{"content": content}}})
	return string(b)
}

func TestAnalysisInvalidData(t *testing.T) {
	h := setupRouter(t, &fakeAI{analyzeText: mealJSON}, nil, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"no messages", `{}`},
		{"empty messages", `{"messages":[]}`},
		{"empty content", analysisBody("")},
		{"not an image", analysisBody("data:text/plain;base64,aGVsbG8=")},
		{"malformed json", `{"messages":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/analysis", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, expected 400", rec.Code)
			}
			if body := decodeError(t, rec); body.Message != "Invalid data" || body.OK {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestAnalysisSuccess(t *testing.T) {
	h := setupRouter(t, &fakeAI{analyzeText: mealJSON}, &fakeModerator{}, Options{})

	rec := post(t, h, "/api/analysis", analysisBody(image))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(DegradedHeader) != "" {
		t.Error("unexpected degraded header")
	}
	var res nutrition.FoodAnalysisResult
	json.NewDecoder(rec.Body).Decode(&res)
	if len(res.FoodItems) != 1 || res.FoodItems[0].Portion.Grams != 150 || res.ConfidenceLevel != nutrition.ConfidenceMedium {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAnalysisFlagged(t *testing.T) {
	mod := &fakeModerator{res: domai.ModerationResult{Flagged: true, Categories: []string{"violence"}}}
	h := setupRouter(t, &fakeAI{analyzeText: mealJSON}, mod, Options{})

	rec := post(t, h, "/api/analysis", analysisBody(image))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, expected 403", rec.Code)
	}
	body := decodeError(t, rec)
	if !strings.Contains(body.Message, "violence") || body.OK {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestAnalysisDegraded(t *testing.T) {
	h := setupRouter(t, &fakeAI{analyzeText: "Sorry, I can't see any food."}, nil, Options{})

	rec := post(t, h, "/api/analysis", analysisBody(image))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(DegradedHeader) != "true" {
		t.Error("expected degraded header")
	}
	var res nutrition.FoodAnalysisResult
	json.NewDecoder(rec.Body).Decode(&res)
	if !reflect.DeepEqual(res, nutrition.DefaultResult()) {
		t.Errorf("expected default result, got %+v", res)
	}
}

func TestAnalysisFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"transport", errors.New("dial tcp: timeout"), http.StatusInternalServerError, "Error analyzing image"},
		{"quota", domai.ErrQuotaExceeded, http.StatusTooManyRequests, "AI quota exceeded, please try again later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupRouter(t, &fakeAI{analyzeErr: tt.err}, nil, Options{})
			rec := post(t, h, "/api/analysis", analysisBody(image))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, expected %d", rec.Code, tt.status)
			}
			body := decodeError(t, rec)
			if body.Message != tt.msg {
				t.Errorf("message = %q, expected %q", body.Message, tt.msg)
			}
			if strings.Contains(body.Message, "dial") {
				t.Error("internal error leaked into response")
			}
		})
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name  string
		model string
		err   error
		want  []string
	}{
		{"bare array", `["a","b"]`, nil, []string{"a", "b"}},
		{"wrapped", `{"recommendations":["a","b"]}`, nil, []string{"a", "b"}},
		{"other shape", `{"foo":1}`, nil, []string{}},
		{"model failure", "", errors.New("boom"), apprecs.Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupRouter(t, &fakeAI{completeText: tt.model, completeErr: tt.err}, nil, Options{})
			rec := post(t, h, "/api/recommendations", `{"foodAnalysis":`+mealJSON+`,"userProfile":{"goal":"build muscle"}}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var got []string
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("response is not a JSON array: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestRecommendationsInvalid(t *testing.T) {
	h := setupRouter(t, &fakeAI{completeText: `["a"]`}, nil, Options{})

	rec := post(t, h, "/api/recommendations", `{"userProfile":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing foodAnalysis: status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "Invalid data" || body.OK {
		t.Errorf("unexpected body %+v", body)
	}

	rec = post(t, h, "/api/recommendations", `not json`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("malformed body: status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "Error generating recommendations" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestExportCSV(t *testing.T) {
	h := setupRouter(t, &fakeAI{}, nil, Options{})

	rec := post(t, h, "/api/export/csv", exportBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="meal-analysis.csv"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "Salmon,280,") || !strings.HasPrefix(lines[2], "Total,") {
		t.Errorf("unexpected CSV:\n%s", rec.Body.String())
	}
}

func TestExportPDF(t *testing.T) {
	h := setupRouter(t, &fakeAI{}, nil, Options{})

	rec := post(t, h, "/api/export/pdf", exportBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}

	rec = post(t, h, "/api/export/pdf", `{"recommendations":["x"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing foodAnalysis: status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := setupRouter(t, &fakeAI{}, nil, Options{
		Checkers: map[string]middleware.HealthChecker{"provider": middleware.ProviderKeyChecker{}},
	})
	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusServiceUnavailable},
		{"/health/ready", http.StatusOK},
		{"/health/live", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, expected %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 0)
	t.Cleanup(limiter.Close)
	h := setupRouter(t, &fakeAI{analyzeText: mealJSON}, nil, Options{Limiter: limiter})

	if rec := post(t, h, "/api/analysis", analysisBody(image)); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := post(t, h, "/api/analysis", analysisBody(image))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.OK {
		t.Error("expected ok:false")
	}

	for i := 0; i < 3; i++ {
		live := httptest.NewRecorder()
		h.ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		if live.Code != http.StatusOK {
			t.Fatalf("health must not be rate limited, got %d", live.Code)
		}
	}
}

func TestPublicError(t *testing.T) {
	status, msg := publicError(errors.New("something internal"))
	if status != http.StatusInternalServerError || msg != "Internal server error" {
		t.Errorf("got %d %q", status, msg)
	}
}
