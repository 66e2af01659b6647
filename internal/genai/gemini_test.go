package genai

import (
	"context"
	"errors"
	"testing"

	googlegenai "google.golang.org/genai"
)

type mockGenerator struct {
	resp    *googlegenai.GenerateContentResponse
	err     error
	configs []*googlegenai.GenerateContentConfig
	models  []string
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*googlegenai.Content, config *googlegenai.GenerateContentConfig) (*googlegenai.GenerateContentResponse, error) {
	m.models = append(m.models, model)
	m.configs = append(m.configs, config)
	return m.resp, m.err
}

func textResponse(parts ...string) *googlegenai.GenerateContentResponse {
	content := &googlegenai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &googlegenai.Part{Text: p})
	}
	return &googlegenai.GenerateContentResponse{
		Candidates: []*googlegenai.Candidate{{Content: content}},
	}
}

func TestGeminiComplete_Success(t *testing.T) {
	gen := &mockGenerator{resp: textResponse("Hello ", "World")}
	client := &GeminiClient{models: gen, model: "gemini-test", temperature: 0.4, maxTokens: 1000}

	out, err := client.Complete(context.Background(), Request{Purpose: PurposeReframe, Prompt: "rewrite", MaxTokens: 2000})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got %q", out)
	}
	if gen.models[0] != "gemini-test" {
		t.Errorf("expected model gemini-test, got %s", gen.models[0])
	}
	if gen.configs[0].MaxOutputTokens != 2000 {
		t.Errorf("expected per-request token override, got %d", gen.configs[0].MaxOutputTokens)
	}
}

func TestGeminiComplete_Error(t *testing.T) {
	client := &GeminiClient{models: &mockGenerator{err: errors.New("quota")}, model: "m"}
	if _, err := client.Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeminiComplete_NoCandidates(t *testing.T) {
	client := &GeminiClient{models: &mockGenerator{resp: &googlegenai.GenerateContentResponse{}}, model: "m"}
	if _, err := client.Complete(context.Background(), Request{Prompt: "p"}); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewGeminiClient_NoKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
