package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainModel adapts a langchaingo llms.Model to eino's chat model contract so
// it can sit in the same prompt chain as the native providers.
type LangchainModel struct {
	llm   llms.Model
	model string
}

var _ model.BaseChatModel = (*LangchainModel)(nil)

// NewOpenAIModel creates an OpenAI-backed model through langchaingo.
func NewOpenAIModel(apiKey, modelName, baseURL string) (*LangchainModel, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(modelName)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create OpenAI client: %w", err)
	}
	return NewLangchainModel(client, modelName)
}

// NewLangchainModel wraps any langchaingo model.
func NewLangchainModel(llm llms.Model, modelName string) (*LangchainModel, error) {
	if llm == nil {
		return nil, errors.New("ai: langchain model must not be nil")
	}
	return &LangchainModel{llm: llm, model: modelName}, nil
}

func (m *LangchainModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	var callOpts []llms.CallOption
	modelName := m.model
	if options.Model != nil && strings.TrimSpace(*options.Model) != "" {
		modelName = strings.TrimSpace(*options.Model)
	}
	if modelName != "" {
		callOpts = append(callOpts, llms.WithModel(modelName))
	}
	if options.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*options.Temperature)))
	}
	if options.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*options.MaxTokens))
	}
	if options.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*options.TopP)))
	}
	if len(options.Stop) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(options.Stop))
	}

	resp, err := m.llm.GenerateContent(ctx, toLangchainMessages(input), callOpts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return nil, ErrEmptyCompletion
	}
	return schema.AssistantMessage(resp.Choices[0].Content, nil), nil
}

// Stream wraps Generate; replies are delivered as one chunk.
func (m *LangchainModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toLangchainMessages(input []*schema.Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case schema.System:
			role = llms.ChatMessageTypeSystem
		case schema.Assistant:
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return messages
}
