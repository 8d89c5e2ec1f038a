package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
)

// fakeChatModel records the last call and answers with a canned reply.
type fakeChatModel struct {
	reply     string
	err       error
	lastInput []*schema.Message
	lastModel string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.lastInput = input
	options := model.GetCommonOptions(&model.Options{}, opts...)
	f.lastModel = ""
	if options.Model != nil {
		f.lastModel = *options.Model
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type listingChatModel struct {
	fakeChatModel
	models []ModelInfo
}

func (l *listingChatModel) ListModels(context.Context) ([]ModelInfo, error) {
	return l.models, nil
}

func TestServiceGenerateForwardsPromptVerbatim(t *testing.T) {
	fake := &fakeChatModel{reply: "Hi there!"}
	svc, err := NewService(context.Background(), fake, "gemini-2.5-flash")
	require.NoError(t, err)

	prompt := `Explain {braces} and "quotes"`
	got, err := svc.Generate(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", got)
	require.Len(t, fake.lastInput, 1)
	assert.Equal(t, schema.User, fake.lastInput[0].Role)
	assert.Equal(t, prompt, fake.lastInput[0].Content)
	assert.Empty(t, fake.lastModel)
	assert.Equal(t, "gemini-2.5-flash", svc.DefaultModel())
}

func TestServiceGenerateWithModelOverride(t *testing.T) {
	fake := &fakeChatModel{reply: "ok"}
	svc, err := NewService(context.Background(), fake, "gemini-2.5-flash")
	require.NoError(t, err)

	_, err = svc.GenerateWithModel(context.Background(), "hello", "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", fake.lastModel)
}

func TestServiceGenerateErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("quota exceeded")}
	svc, err := NewService(context.Background(), fake, "m")
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = svc.Generate(context.Background(), "hello")
	require.ErrorContains(t, err, "quota exceeded")

	fake.err = nil
	fake.reply = ""
	_, err = svc.Generate(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestServiceListModels(t *testing.T) {
	svc, err := NewService(context.Background(), &fakeChatModel{}, "m")
	require.NoError(t, err)
	_, err = svc.ListModels(context.Background())
	require.ErrorIs(t, err, ErrListModelsUnsupported)

	lister := &listingChatModel{models: []ModelInfo{{Name: "models/a"}}}
	svc, err = NewService(context.Background(), lister, "m")
	require.NoError(t, err)
	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lister.models, models)
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.AIConfig{Provider: config.ProviderGemini, Model: "m"})
	require.Error(t, err)
}

func TestNewChatModelSelectsProvider(t *testing.T) {
	m, err := NewChatModel(context.Background(), config.AIConfig{Provider: config.ProviderGemini, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiModel{}, m)

	m, err = NewChatModel(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI, OpenAIAPIKey: "k", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.IsType(t, &LangchainModel{}, m)
}
