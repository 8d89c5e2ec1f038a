package ai

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned by Unavailable for every call.
var ErrProviderUnavailable = errors.New("AI provider is not configured")

// Unavailable stands in for a Service when no credentials are configured, so the
// server still starts and every prompt yields an inline error.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, string) (string, error) {
	return "", ErrProviderUnavailable
}

func (Unavailable) GenerateWithModel(context.Context, string, string) (string, error) {
	return "", ErrProviderUnavailable
}

func (Unavailable) ListModels(context.Context) ([]ModelInfo, error) {
	return nil, ErrProviderUnavailable
}
