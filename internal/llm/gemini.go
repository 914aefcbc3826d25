package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/techopsonedev/onedev/internal/config"
)

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	cli *genai.Client
	cfg *config.InferenceConfig
}

// NewGemini builds a Gemini API client. An empty api_key lets genai read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGemini(ctx context.Context, cfg *config.InferenceConfig) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Gemini{cli: cli, cfg: cfg}, nil
}

func (g *Gemini) Name() string { return config.ProviderGemini + ":" + g.cfg.Model }

func (g *Gemini) Complete(ctx context.Context, messages []Message, opts ...Option) (*Response, error) {
	options := defaultOptions(g.cfg, opts)

	gen := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(options.Temperature)),
		TopP:            genai.Ptr(float32(options.TopP)),
		MaxOutputTokens: int32(options.MaxTokens),
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		gen.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, options.Model, contents, gen)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	out := &Response{Content: text.String()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int64(u.PromptTokenCount),
			CompletionTokens: int64(u.CandidatesTokenCount),
			TotalTokens:      int64(u.TotalTokenCount),
		}
	}
	return out, nil
}
