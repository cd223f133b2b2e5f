package openai

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "sort"
    "strings"
    "time"

    "github.com/sashabaranov/go-openai"

    domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
    "github.com/bryanwahyu/macrolens/internal/infra/ai/prompt"
)

const defaultModerationModel = "omni-moderation-latest"

// Moderator calls the omni moderation endpoint with a text part and an image part.
// go-openai's ModerationRequest only carries a text input, so the request is built here.
type Moderator struct {
    httpClient *http.Client
    baseURL    string
    apiKey     string
    model      string
}

func NewModerator(apiKey, baseURL, model string) *Moderator {
    if baseURL == "" {
        baseURL = openai.DefaultConfig(apiKey).BaseURL
    }
    if model == "" {
        model = defaultModerationModel
    }
    return &Moderator{
        httpClient: &http.Client{Timeout: 30 * time.Second},
        baseURL:    strings.TrimRight(baseURL, "/"),
        apiKey:     apiKey,
        model:      model,
    }
}

type moderationPart struct {
    Type     string              `json:"type"`
    Text     string              `json:"text,omitempty"`
    ImageURL *moderationImageURL `json:"image_url,omitempty"`
}

type moderationImageURL struct {
    URL string `json:"url"`
}

type moderationRequest struct {
    Model string           `json:"model"`
    Input []moderationPart `json:"input"`
}

type moderationResponse struct {
    Results []struct {
        Flagged    bool            `json:"flagged"`
        Categories map[string]bool `json:"categories"`
    } `json:"results"`
}

// Moderate implements ai.Moderator.
func (m *Moderator) Moderate(ctx context.Context, dataURI string) (domai.ModerationResult, error) {
    body, err := json.Marshal(moderationRequest{
        Model: m.model,
        Input: []moderationPart{
            {Type: "text", Text: prompt.GetModerationText()},
            {Type: "image_url", ImageURL: &moderationImageURL{URL: dataURI}},
        },
    })
    if err != nil {
        return domai.ModerationResult{}, fmt.Errorf("failed to marshal moderation request: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/moderations", bytes.NewReader(body))
    if err != nil {
        return domai.ModerationResult{}, fmt.Errorf("failed to create moderation request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+m.apiKey)

    resp, err := m.httpClient.Do(req)
    if err != nil {
        return domai.ModerationResult{}, fmt.Errorf("moderation request failed: %w", err)
    }
    defer resp.Body.Close()

    raw, err := io.ReadAll(resp.Body)
    if err != nil {
        return domai.ModerationResult{}, fmt.Errorf("failed to read moderation response: %w", err)
    }
    if resp.StatusCode == http.StatusTooManyRequests {
        return domai.ModerationResult{}, fmt.Errorf("%w: moderation", domai.ErrQuotaExceeded)
    }
    if resp.StatusCode != http.StatusOK {
        return domai.ModerationResult{}, fmt.Errorf("moderation API error (status %d): %s", resp.StatusCode, string(raw))
    }

    var out moderationResponse
    if err := json.Unmarshal(raw, &out); err != nil {
        return domai.ModerationResult{}, fmt.Errorf("failed to parse moderation response: %w", err)
    }
    if len(out.Results) == 0 {
        return domai.ModerationResult{}, domai.ErrEmptyResponse
    }

    first := out.Results[0]
    categories := make([]string, 0, len(first.Categories))
    for name, hit := range first.Categories {
        if hit {
            categories = append(categories, name)
        }
    }
    sort.Strings(categories)
    return domai.ModerationResult{Flagged: first.Flagged, Categories: categories}, nil
}
