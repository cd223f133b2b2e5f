package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4.1-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
	return string(b)
}

func setupServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeImageSendsPromptAndImage(t *testing.T) {
	var captured map[string]any
	srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse(`{"foodItems":[],"totalMacros":{},"confidenceLevel":"Low"}`)))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	out, err := c.AnalyzeImage(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if !strings.Contains(out, "confidenceLevel") {
		t.Errorf("unexpected output %q", out)
	}

	if captured["model"] != defaultModel {
		t.Errorf("expected default model, got %v", captured["model"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	parts, _ := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", msgs[0])
	}
	img, _ := parts[1].(map[string]any)["image_url"].(map[string]any)
	if img["url"] != "data:image/png;base64,AAAA" || img["detail"] != "high" {
		t.Errorf("unexpected image part %v", img)
	}
}

func TestCompleteRequestsJSONObject(t *testing.T) {
	var captured map[string]any
	srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse(`{"recommendations":["a"]}`)))
	})

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	out, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"recommendations":["a"]}` {
		t.Errorf("unexpected output %q", out)
	}
	rf, _ := captured["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", captured["response_format"])
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("expected configured model, got %v", captured["model"])
	}
}

func TestQuotaErrorIsClassified(t *testing.T) {
	srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	})

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "x")
	if !errors.Is(err, domai.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestEmptyChoices(t *testing.T) {
	srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "x"); !errors.Is(err, domai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"o3-2025-04-16", true},
		{"o4-mini", true},
		{"gpt-5", true},
		{"gpt-4.1-mini", false},
		{"gpt-4o", false},
	}
	for _, tt := range tests {
		if got := isReasoningModel(tt.model); got != tt.want {
			t.Errorf("isReasoningModel(%q) = %v, expected %v", tt.model, got, tt.want)
		}
	}
}

func TestModerate(t *testing.T) {
	var captured moderationRequest
	srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"modr-1","model":"omni-moderation-latest","results":[{"flagged":true,"categories":{"violence":true,"sexual":false,"harassment":true}}]}`))
	})

	m := NewModerator("k", srv.URL, "")
	res, err := m.Moderate(context.Background(), "data:image/jpeg;base64,AAAA")
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if !res.Flagged {
		t.Error("expected flagged result")
	}
	if len(res.Categories) != 2 || res.Categories[0] != "harassment" || res.Categories[1] != "violence" {
		t.Errorf("unexpected categories %v", res.Categories)
	}

	if captured.Model != defaultModerationModel {
		t.Errorf("expected default moderation model, got %q", captured.Model)
	}
	if len(captured.Input) != 2 || captured.Input[1].ImageURL == nil || captured.Input[1].ImageURL.URL != "data:image/jpeg;base64,AAAA" {
		t.Errorf("unexpected moderation input %+v", captured.Input)
	}
}

func TestModerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		quota  bool
	}{
		{"quota", http.StatusTooManyRequests, `{}`, true},
		{"server error", http.StatusInternalServerError, `oops`, false},
		{"bad json", http.StatusOK, `not json`, false},
		{"no results", http.StatusOK, `{"results":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := NewModerator("k", srv.URL, "").Moderate(context.Background(), "data:image/png;base64,AA")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, domai.ErrQuotaExceeded); got != tt.quota {
				t.Errorf("quota match = %v, expected %v (err %v)", got, tt.quota, err)
			}
		})
	}
}
