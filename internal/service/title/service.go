package title

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/gemini-chat/backend/internal/analysis/title"
)

// Generator 返回模型对单条提示的完整回复。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service 使用大模型生成会话标题，并在失败时回退到启发式规则。
type Service struct {
	generator Generator
	template  prompt.ChatTemplate
	fallback  func(prompt string) string
}

// NewService 创建标题服务。generator 为 nil 时始终使用本地规则。
func NewService(generator Generator) *Service {
	return &Service{
		generator: generator,
		template:  prompt.FromMessages(schema.FString, schema.UserMessage(titleInstruction)),
		fallback:  analysis.Extract,
	}
}

// Enabled 返回是否配置了远程生成。
func (s *Service) Enabled() bool {
	return s != nil && s.generator != nil
}

// Generate derives a short title for the first prompt of a session. It never
// fails: any remote problem is logged and the local heuristic is used instead.
func (s *Service) Generate(ctx context.Context, userPrompt string) string {
	userPrompt = strings.TrimSpace(userPrompt)
	if !s.Enabled() {
		return s.fallback(userPrompt)
	}

	instruction, err := s.Instruction(ctx, userPrompt)
	if err != nil {
		log.Printf("[title] build instruction failed, use fallback: %v", err)
		return s.fallback(userPrompt)
	}

	raw, err := s.generator.Generate(ctx, instruction)
	if err != nil {
		log.Printf("[title] remote generation failed, use fallback: %v", err)
		return s.fallback(userPrompt)
	}

	if strings.TrimSpace(raw) == "" {
		return analysis.DefaultTitle
	}

	cleaned := analysis.Clean(raw)
	if cleaned == "" {
		// 只有引号的回复视为无效。
		return s.fallback(userPrompt)
	}
	return cleaned
}

// Instruction renders the fixed title request for userPrompt.
func (s *Service) Instruction(ctx context.Context, userPrompt string) (string, error) {
	messages, err := s.template.Format(ctx, map[string]any{"prompt": userPrompt})
	if err != nil {
		return "", fmt.Errorf("format title instruction: %w", err)
	}
	if len(messages) == 0 || messages[0] == nil {
		return "", errors.New("title instruction rendered no message")
	}
	return messages[0].Content, nil
}

const titleInstruction = "Generate a very short title (3-6 words maximum) that describes what the user is asking. " +
	"The title should be a simple, clear description. Do NOT use quotes. Just respond with the title only.\n\n" +
	"User's request: \"{prompt}\""
