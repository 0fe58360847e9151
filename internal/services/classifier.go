package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	openai "github.com/sashabaranov/go-openai"

	"github.com/redflag-ai/redflag/internal/gcp"
)

// BuildClassifierPrompt assembles the user prompt for one job. Instructions
// supplied on the job replace the default analysis instructions; the
// transcript is always appended under a fixed delimiter.
func BuildClassifierPrompt(instructions, transcript string) string {
	instr := strings.TrimSpace(instructions)
	if instr == "" {
		instr = gcp.DefaultClassifierInstructions
	}
	return instr + "\n\nTranscript:\n\"\"\"\n" + transcript + "\n\"\"\""
}

// ExtractJSONObject pulls the first-to-last brace substring out of a model
// response and parses it. Code fences, preambles, and trailing prose are
// tolerated. Failures yield an empty map and ok=false rather than an error:
// classifier output quality must never decide job success.
func ExtractJSONObject(raw string) (map[string]any, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return map[string]any{}, false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return map[string]any{}, false
	}
	return parsed, true
}

// VertexModel adapts a pre-configured Gemini model to the TextModel interface.
type VertexModel struct {
	model *genai.GenerativeModel
}

func NewVertexModel(model *genai.GenerativeModel) *VertexModel {
	return &VertexModel{model: model}
}

func (m *VertexModel) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := m.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return extractResponseText(resp)
}

// extractResponseText parses the model's response and robustly extracts text
// content, stripping the markdown fences the model sometimes adds around JSON.
func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}

	contentStr := strings.TrimSpace(content.String())
	contentStr = strings.TrimPrefix(contentStr, "```json")
	contentStr = strings.TrimPrefix(contentStr, "```")
	contentStr = strings.TrimSuffix(contentStr, "```")
	return strings.TrimSpace(contentStr), nil
}

// OpenAIModel adapts the OpenAI chat API to the TextModel interface. It is
// the backend for deployments without Vertex AI access.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

func NewOpenAIModel(client *openai.Client, model string) *OpenAIModel {
	return &OpenAIModel{client: client, model: model}
}

func (m *OpenAIModel) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: 0.1,
		MaxTokens:   8192,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gcp.ClassifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Classifier turns a transcript into a raw tactic payload.
type Classifier struct {
	model TextModel
}

func NewClassifier(model TextModel) *Classifier {
	return &Classifier{model: model}
}

// Classify runs the model over the transcript and parses its JSON response.
// The returned map is empty when the model fails, refuses, or produces
// something unparsable; the caller downgrades that to a warning, not a
// job failure.
func (c *Classifier) Classify(ctx context.Context, instructions, transcript string) map[string]any {
	prompt := BuildClassifierPrompt(instructions, transcript)

	raw, err := c.model.GenerateJSON(ctx, prompt)
	if err != nil {
		slog.Warn("Classifier call failed, continuing with empty analysis.", "error", err)
		return map[string]any{}
	}

	parsed, ok := ExtractJSONObject(raw)
	if !ok {
		slog.Warn("Classifier returned non-JSON output, continuing with empty analysis.", "responseChars", len(raw))
	}
	return parsed
}
