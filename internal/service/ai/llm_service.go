package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
)

var (
	// ErrEmptyPrompt is returned when Generate is called with a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrListModelsUnsupported is returned when the provider cannot enumerate models.
	ErrListModelsUnsupported = errors.New("listing models is not supported by this provider")
)

// ModelLister is implemented by chat models that can enumerate upstream models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Service forwards a single prompt to the configured provider and returns its text.
// There is no retry, no backoff and no provider streaming.
type Service struct {
	chatModel    model.BaseChatModel
	defaultModel string
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt→model chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, defaultModel string) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model must not be nil")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		defaultModel: strings.TrimSpace(defaultModel),
		chain:        runnable,
	}, nil
}

// NewServiceFromConfig builds the provider selected by cfg and wraps it in a Service.
func NewServiceFromConfig(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewService(ctx, chatModel, cfg.Model)
}

// NewChatModel 使用配置创建一个模型实例。
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("credentials for provider %q are not configured", cfg.Provider)
	}

	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			Region:      cfg.ArkRegion,
			APIKey:      cfg.ArkAPIKey,
			AccessKey:   cfg.ArkAccessKey,
			SecretKey:   cfg.ArkSecretKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: temperature,
		})
	case config.ProviderOpenAI:
		return NewOpenAIModel(cfg.OpenAIAPIKey, cfg.Model, cfg.BaseURL)
	default:
		return NewGeminiModel(cfg.APIKey, cfg.Model,
			WithGeminiBaseURL(cfg.BaseURL),
			WithGeminiTimeout(cfg.Timeout),
			WithGeminiGenerationDefaults(temperature, cfg.MaxTokens),
		)
	}
}

// DefaultModel returns the model used when a request does not name one.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

// Generate runs prompt against the default model.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	return s.GenerateWithModel(ctx, prompt, "")
}

// GenerateWithModel runs prompt against modelName, or the default model when it is empty.
func (s *Service) GenerateWithModel(ctx context.Context, prompt, modelName string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	var opts []compose.Option
	if modelName = strings.TrimSpace(modelName); modelName != "" {
		opts = append(opts, compose.WithChatModelOption(model.WithModel(modelName)))
	} else {
		modelName = s.defaultModel
	}

	response, err := s.chain.Invoke(ctx, map[string]any{"prompt": prompt}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", ErrEmptyCompletion
	}

	log.Printf("[ai] generated response model=%s prompt_len=%d length=%d", modelName, len(prompt), len(response.Content))
	return response.Content, nil
}

// ListModels enumerates upstream models when the provider supports it.
func (s *Service) ListModels(ctx context.Context) ([]ModelInfo, error) {
	lister, ok := s.chatModel.(ModelLister)
	if !ok {
		return nil, ErrListModelsUnsupported
	}
	return lister.ListModels(ctx)
}
