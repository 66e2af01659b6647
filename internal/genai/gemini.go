package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	googlegenai "google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// contentGenerator is the slice of the Gemini SDK the client depends on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*googlegenai.Content, config *googlegenai.GenerateContentConfig) (*googlegenai.GenerateContentResponse, error)
}

// GeminiClient implements Oracle on top of Google's Gemini API.
type GeminiClient struct {
	models      contentGenerator
	model       string
	temperature float64
	maxTokens   int
	debugMode   bool
	stateDir    string
}

var _ Oracle = (*GeminiClient)(nil)

// NewGeminiClient initializes a Gemini-backed client. An API key option is required.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	cfg := applyOptions(opts)
	slog.Debug("genai.NewGeminiClient invoked", "api_key_set", cfg.APIKey != "", "model", cfg.Model, "debug", cfg.DebugMode)
	if cfg.APIKey == "" {
		slog.Error("genai.NewGeminiClient: Gemini API key not set")
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: googlegenai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		models:      client.Models,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Complete sends the prompt as a single user turn and returns the concatenated text parts.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	maxTokens := g.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	contents := []*googlegenai.Content{
		googlegenai.NewContentFromText(req.Prompt, googlegenai.RoleUser),
	}
	config := &googlegenai.GenerateContentConfig{
		Temperature:     googlegenai.Ptr(float32(g.temperature)),
		MaxOutputTokens: int32(maxTokens),
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		slog.Error("GeminiClient.Complete: generate content failed", "purpose", req.Purpose, "model", g.model, "error", err)
		g.writeDebugLog(req.Purpose, config, map[string]string{"error": err.Error()})
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	g.writeDebugLog(req.Purpose, config, resp)
	if resp == nil || len(resp.Candidates) == 0 {
		slog.Warn("GeminiClient.Complete: no candidates returned", "purpose", req.Purpose, "model", g.model)
		return "", ErrNoChoicesReturned
	}

	content := resp.Text()
	slog.Info("GeminiClient.Complete: oracle call completed",
		"purpose", req.Purpose,
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_length", len(req.Prompt),
		"output_length", len(content))
	return content, nil
}

func (g *GeminiClient) writeDebugLog(purpose Purpose, params, response interface{}) {
	if !g.debugMode {
		return
	}
	writeDebugEntry(g.stateDir, string(purpose), g.model, params, response)
}
