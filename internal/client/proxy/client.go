// Package proxy is the HTTP client of the /ask-gemini and /list-models
// endpoints, used by the terminal client and anything else that talks to a
// running server instead of a provider.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultModel is sent when the caller does not pick a model.
const DefaultModel = "gemini-2.5-flash"

// AskRequest is the body of POST /ask-gemini.
type AskRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// AskResponse is the body of a successful /ask-gemini call. Failed calls use the
// same shape without a type.
type AskResponse struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Model describes one upstream model.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ModelList is the body of GET /list-models.
type ModelList struct {
	Models []Model `json:"models"`
	Error  string  `json:"error,omitempty"`
}

// StatusError reports a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyReply is returned when the server answers 2xx without text.
var ErrEmptyReply = errors.New("server returned an empty reply")

// Client talks to a running proxy server.
type Client struct {
	client *resty.Client
	model  string
}

// Option customizes the client.
type Option func(*Client)

// WithModel sets the model sent with every prompt.
func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.SetTimeout(timeout)
		}
	}
}

// New creates a client for the server at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("proxy base url must not be empty")
	}

	c := &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(90*time.Second).
			SetHeader("Content-Type", "application/json"),
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the model sent with prompts.
func (c *Client) Model() string {
	return c.model
}

// Generate posts the prompt and returns the reply text verbatim. No retry is
// attempted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var result, failure AskResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(AskRequest{Prompt: prompt, Model: c.model}).
		SetResult(&result).
		SetError(&failure).
		Post("/ask-gemini")
	if err != nil {
		return "", fmt.Errorf("ask-gemini request failed: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{StatusCode: resp.StatusCode(), Message: failure.Text}
	}
	if result.Text == "" {
		return "", ErrEmptyReply
	}
	return result.Text, nil
}

// ListModels fetches the models the server's key can use.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var result, failure ModelList
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failure).
		Get("/list-models")
	if err != nil {
		return nil, fmt.Errorf("list-models request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Message: failure.Error}
	}
	return result.Models, nil
}
