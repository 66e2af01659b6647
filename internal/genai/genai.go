// Package genai provides the generative text oracle used by the reframe pipeline.
//
// The pipeline only depends on the narrow Oracle interface (prompt in, text out).
// Two backends implement it: an OpenAI chat-completions client and a Google
// Gemini client. Both are constructed once at startup and shared across requests.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration constants
const (
	// DefaultOpenAIModel is the chat model used when none is configured
	DefaultOpenAIModel = openai.ChatModelGPT4oMini
	// DefaultTemperature keeps classification answers stable
	DefaultTemperature = 0.4
	// DefaultMaxTokens bounds a single completion
	DefaultMaxTokens = 1000
)

// Error variables for better error handling and testability
var (
	ErrNoAPIKey          = errors.New("API key not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyPrompt       = errors.New("prompt is empty")
)

// Purpose labels why the oracle is being called. It is used for logging,
// debug dumps and by test doubles to script answers.
type Purpose string

const (
	PurposeDetectInbound  Purpose = "detect_inbound"
	PurposeDetectOutbound Purpose = "detect_outbound"
	PurposeAssess         Purpose = "assess"
	PurposeReframe        Purpose = "reframe"
)

// Request is a single prompt-in/text-out oracle call.
type Request struct {
	Purpose Purpose
	Prompt  string
	// MaxTokens overrides the client default when positive.
	MaxTokens int
}

// Oracle is the generative text completion service as seen by the pipeline.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Provider names an oracle backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ParseProvider maps a configuration value to a provider, defaulting to OpenAI.
func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown oracle provider %q", raw)
	}
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChat adapts the SDK's completion service to chatService.
type openAIChat struct {
	svc *openai.ChatCompletionService
}

func (o openAIChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI ChatCompletion service and implements Oracle.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int
	debugMode   bool
	stateDir    string
}

var _ Oracle = (*Client)(nil)

// NewClient initializes a new OpenAI-backed client. An API key option is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := applyOptions(opts)
	slog.Debug("genai.NewClient invoked", "api_key_set", cfg.APIKey != "", "model", cfg.Model, "debug", cfg.DebugMode)
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: OpenAI API key not set")
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:        openAIChat{svc: &cli.Chat.Completions},
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Complete sends the prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.Complete: chat completion failed", "purpose", req.Purpose, "model", c.model, "error", err)
		c.writeDebugLog(req.Purpose, params, map[string]string{"error": err.Error()})
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	c.writeDebugLog(req.Purpose, params, resp)
	if len(resp.Choices) == 0 {
		slog.Warn("Client.Complete: no choices returned", "purpose", req.Purpose, "model", c.model)
		return "", ErrNoChoicesReturned
	}

	content := resp.Choices[0].Message.Content
	slog.Info("Client.Complete: oracle call completed",
		"purpose", req.Purpose,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_length", len(req.Prompt),
		"output_length", len(content))
	return content, nil
}
