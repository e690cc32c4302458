package capability

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiClient generates text through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: c, model: model}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Availability(ctx context.Context) Availability {
	if g.client == nil {
		return Unavailable
	}
	return Available
}

func (g *GeminiClient) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if g.client == nil {
		return nil, ErrUnavailable
	}
	return &geminiSession{client: g, system: opts.TaskPrompt}, nil
}

type geminiSession struct {
	client *GeminiClient
	system string
}

func (s *geminiSession) Run(ctx context.Context, input string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if s.system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(s.system, genai.RoleUser),
		}
	}
	res, err := s.client.client.Models.GenerateContent(ctx, s.client.model, []*genai.Content{
		genai.NewContentFromText(input, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api: %w", err)
	}
	return stripCodeBlock(res.Text()), nil
}

// Release is a no-op: the underlying client is shared across sessions
// and holds no per-session server state.
func (s *geminiSession) Release() {}
