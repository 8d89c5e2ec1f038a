package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
)

// DefaultGeminiBaseURL is the public Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1"

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("ai: provider returned no text")

// StatusError captures non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// ModelInfo describes one model offered by the provider.
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type geminiModelList struct {
	Models []ModelInfo `json:"models"`
}

// GeminiOption customizes a GeminiModel.
type GeminiOption func(*GeminiModel)

// WithGeminiBaseURL points the client at another API root, e.g. a test server.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(g *GeminiModel) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			g.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
		}
	}
}

// WithGeminiTimeout bounds each upstream request.
func WithGeminiTimeout(timeout time.Duration) GeminiOption {
	return func(g *GeminiModel) {
		if timeout > 0 {
			g.client.SetTimeout(timeout)
		}
	}
}

// WithGeminiGenerationDefaults sets the sampling parameters used when a call passes none.
func WithGeminiGenerationDefaults(temperature *float32, maxTokens *int) GeminiOption {
	return func(g *GeminiModel) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// GeminiModel is an eino chat model backed by the Generative Language REST API.
// There is no provider streaming: Stream delivers the full completion as one chunk.
type GeminiModel struct {
	client      *resty.Client
	model       string
	temperature *float32
	maxTokens   *int
}

var _ model.BaseChatModel = (*GeminiModel)(nil)

// NewGeminiModel creates a GeminiModel for the given key and default model name.
func NewGeminiModel(apiKey, modelName string, opts ...GeminiOption) (*GeminiModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ai: gemini api key must not be empty")
	}
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return nil, errors.New("ai: gemini model must not be empty")
	}

	client := resty.New().
		SetBaseURL(DefaultGeminiBaseURL).
		SetTimeout(60*time.Second).
		SetHeader("x-goog-api-key", apiKey).
		SetHeader("Content-Type", "application/json")

	g := &GeminiModel{client: client, model: modelName}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends the conversation to models/{model}:generateContent and returns
// the concatenated text of the first candidate.
func (g *GeminiModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}, opts...)

	modelName := g.model
	if options.Model != nil && strings.TrimSpace(*options.Model) != "" {
		modelName = strings.TrimSpace(*options.Model)
	}

	body := buildGeminiRequest(input, options)

	var (
		payload geminiResponse
		apiErr  geminiError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("model", strings.TrimPrefix(modelName, "models/")).
		SetBody(body).
		SetResult(&payload).
		SetError(&apiErr).
		Post("/models/{model}:generateContent")
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}

	if payload.PromptFeedback != nil && payload.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini: prompt blocked: %s", payload.PromptFeedback.BlockReason)
	}
	if len(payload.Candidates) == 0 {
		return nil, ErrEmptyCompletion
	}

	var builder strings.Builder
	for _, part := range payload.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}
	if builder.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	return schema.AssistantMessage(builder.String(), nil), nil
}

// Stream wraps Generate; the provider call itself is never incremental.
func (g *GeminiModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// ListModels returns the models visible to the configured key.
func (g *GeminiModel) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var (
		payload geminiModelList
		apiErr  geminiError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&payload).
		SetError(&apiErr).
		Get("/models")
	if err != nil {
		return nil, fmt.Errorf("gemini: list models failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}

	if payload.Models == nil {
		return []ModelInfo{}, nil
	}
	return payload.Models, nil
}

func buildGeminiRequest(input []*schema.Message, options *model.Options) geminiRequest {
	req := geminiRequest{Contents: make([]geminiContent, 0, len(input))}

	var system []geminiPart
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, geminiPart{Text: msg.Content})
		case schema.Assistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: system}
	}

	if options != nil && (options.Temperature != nil || options.TopP != nil || options.MaxTokens != nil || len(options.Stop) > 0) {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     options.Temperature,
			TopP:            options.TopP,
			MaxOutputTokens: options.MaxTokens,
			StopSequences:   options.Stop,
		}
	}
	return req
}
