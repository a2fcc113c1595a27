package generate

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"compass/internal/domain"
)

// GeminiProvider calls the Gemini API through the official SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	contents := geminiContents(prompt.Turns)

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(prompt.Temperature)),
		MaxOutputTokens: int32(prompt.MaxTokens),
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini: empty completion")
	}

	comp := &Completion{
		Text:     text,
		Provider: p.Name(),
		Model:    p.model,
	}
	if result.UsageMetadata != nil {
		comp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}
	return comp, nil
}

// geminiContents maps conversation turns onto the SDK's content slice. The
// RoleUser/RoleModel constants are untyped strings, so the variable must be
// declared as genai.Role for NewContentFromText.
func geminiContents(turns []domain.ContextTurn) []*genai.Content {
	var contents []*genai.Content
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}
