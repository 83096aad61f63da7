package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"
)

// geminiModel adapts the Gemini SDK to llms.Model. Replies are requested
// as JSON.
type geminiModel struct {
	client *genai.Client
	name   string
}

var _ llms.Model = (*geminiModel)(nil)

func newGeminiModel(ctx context.Context, apiKey, name string) (*geminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not found")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiModel{client: client, name: name}, nil
}

func (g *geminiModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	model := g.client.GenerativeModel(g.name)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	var system, user []string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			text, ok := part.(llms.TextContent)
			if !ok {
				continue
			}
			if msg.Role == llms.ChatMessageTypeSystem {
				system = append(system, text.Text)
			} else {
				user = append(user, text.Text)
			}
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = genai.NewUserContent(genai.Text(strings.Join(system, "\n")))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(strings.Join(user, "\n")))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	info := map[string]any{}
	if resp.UsageMetadata != nil {
		info["PromptTokens"] = int64(resp.UsageMetadata.PromptTokenCount)
		info["CompletionTokens"] = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: sb.String(), GenerationInfo: info}},
	}, nil
}

func (g *geminiModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}
