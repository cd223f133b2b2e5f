package openai

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/sashabaranov/go-openai"

    domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
    "github.com/bryanwahyu/macrolens/internal/infra/ai/prompt"
)

const (
    defaultModel       = "gpt-4.1-mini"
    defaultTemperature = 0.7
    maxTokens          = 2048
)

// Options for the generation client. Zero values fall back to defaults.
type Options struct {
    APIKey      string
    BaseURL     string
    Model       string
    Temperature float32
    MaxTokens   int
}

type Client struct {
    *openai.Client
    Model       string
    Temperature float32
    MaxTokens   int
}

func NewClient(opts Options) *Client {
    cfg := openai.DefaultConfig(opts.APIKey)
    if opts.BaseURL != "" {
        cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
    }
    c := &Client{
        Client:      openai.NewClientWithConfig(cfg),
        Model:       opts.Model,
        Temperature: opts.Temperature,
        MaxTokens:   opts.MaxTokens,
    }
    if c.Model == "" {
        c.Model = defaultModel
    }
    if c.Temperature == 0 {
        c.Temperature = defaultTemperature
    }
    if c.MaxTokens <= 0 {
        c.MaxTokens = maxTokens
    }
    return c
}

// AnalyzeImage implements ai.Client.
func (c *Client) AnalyzeImage(ctx context.Context, dataURI string) (string, error) {
    req := c.request([]openai.ChatCompletionMessage{
        {
            Role: openai.ChatMessageRoleUser,
            MultiContent: []openai.ChatMessagePart{
                {Type: openai.ChatMessagePartTypeText, Text: prompt.GetMealAnalysisPrompt()},
                {
                    Type: openai.ChatMessagePartTypeImageURL,
                    ImageURL: &openai.ChatMessageImageURL{
                        URL:    dataURI,
                        Detail: openai.ImageURLDetailHigh,
                    },
                },
            },
        },
    })
    return c.complete(ctx, req)
}

// Complete implements ai.Client. The model is asked for a JSON object.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
    req := c.request([]openai.ChatCompletionMessage{
        {Role: openai.ChatMessageRoleUser, Content: text},
    })
    req.ResponseFormat = &openai.ChatCompletionResponseFormat{
        Type: openai.ChatCompletionResponseFormatTypeJSONObject,
    }
    return c.complete(ctx, req)
}

func (c *Client) request(msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
    req := openai.ChatCompletionRequest{
        Model:       c.Model,
        Messages:    msgs,
        Temperature: c.Temperature,
    }
    // For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
    if isReasoningModel(c.Model) {
        req.MaxCompletionTokens = c.MaxTokens
        req.Temperature = 0
    } else {
        req.MaxTokens = c.MaxTokens
    }
    return req
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        return "", fmt.Errorf("failed to create chat completion: %w", classify(err))
    }
    if len(resp.Choices) == 0 {
        return "", domai.ErrEmptyResponse
    }
    return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
    for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
        if strings.HasPrefix(model, p) {
            return true
        }
    }
    return false
}

// classify maps provider rate/quota responses onto ai.ErrQuotaExceeded.
func classify(err error) error {
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: %s", domai.ErrQuotaExceeded, apiErr.Message)
    }
    var reqErr *openai.RequestError
    if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, reqErr.Err)
    }
    return err
}
