package chat

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrGenerationFailed indicates the model produced no usable reply.
	ErrGenerationFailed = errors.New("chat: generation failed")

	// ErrInvalidConfig indicates missing or contradictory completer settings.
	ErrInvalidConfig = errors.New("chat: invalid config")
)

// Chat message roles, matching the OpenAI wire values.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to the model.
type Message struct {
	Role    string
	Content string
}

// Completer generates one assistant reply from a conversation.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// CompleterConfig holds the settings for the OpenAI-compatible completer.
// Groq and other compatible providers are selected via BaseURL.
type CompleterConfig struct {
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	Temperature float32 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// ApplyDefaults fills in unset fields.
func (c *CompleterConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "llama-3.1-8b-instant"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 10000
	}
}

// Validate checks the configuration.
func (c *CompleterConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api_key is required", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// OpenAICompleter talks to any OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client *openai.Client
	cfg    CompleterConfig
}

// NewOpenAICompleter creates a completer for cfg's endpoint.
func NewOpenAICompleter(cfg CompleterConfig) (*OpenAICompleter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

// Complete sends the conversation and returns the first choice's content.
func (o *OpenAICompleter) Complete(ctx context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidConfig)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	req.Messages = make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}
