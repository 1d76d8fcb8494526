package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiEngine generates replies with Google's Gemini API.
type GeminiEngine struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiEngine creates a Gemini-backed engine. A zero timeout leaves the
// call bounded only by ctx.
func NewGeminiEngine(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiEngine{client: client, model: model, timeout: timeout}, nil
}

// Model returns the configured model name.
func (e *GeminiEngine) Model() string {
	return e.model
}

// GenerateReply sends the conversation to the model and returns its text.
func (e *GeminiEngine) GenerateReply(ctx context.Context, systemPrompt string, history []domain.Turn, userMessage string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, buildContents(history, userMessage), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func buildContents(history []domain.Turn, userMessage string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(userMessage, genai.RoleUser))
}
