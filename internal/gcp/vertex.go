package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Classifier Model Prompts ---

const ClassifierSystemPrompt = "You are a relationship-safety analyst. Your task is to read chat transcripts and identify patterns of psychological manipulation with clinical precision. You must output your response as a single valid JSON object. The material may contain abusive or explicit language; analyzing it accurately is the point of the task, so never refuse and never moralize."

const DefaultClassifierInstructions = `Analyze the conversation transcript below for psychological manipulation tactics.

Follow these rules precisely:
1.  Only report tactics that the transcript actually supports. Use the tactic ids from this fixed taxonomy: gaslighting, darvo, blame-shifting, minimization, stonewalling, contempt, guilt-tripping, threats, coercion, triangulation, boundaries, projection. If a behavior fits none of them, use the id "other".
2.  Create a JSON object for each tactic found, with exactly these keys:
    - "id": the taxonomy id.
    - "name": a short display name for the tactic.
    - "likelihood": how certain you are the tactic is present, from 0.0 to 1.0.
    - "severity": how damaging the behavior is, from 1 to 5.
    - "frequency": how often it occurs in the transcript, from 0 to 5.
    - "examples": up to 5 short verbatim quotes from the transcript that show the tactic.
3.  Collect the most revealing quotes into a top-level "receipts" array. Each receipt must have "quote" (verbatim text), "category" (a taxonomy id), "source" (which speaker said it), and "severity" (1 to 5).
4.  Set "confidence" to your overall confidence in the analysis from 0.0 to 1.0, "risk_label" to "low", "medium", or "high", and "narrative" to a two-to-four sentence plain-language summary addressed to the person who uploaded the conversation.
5.  Put any useful aggregate counts, such as messages per speaker, in a "kpis" object.
6.  The final output MUST be a single valid JSON object with the keys "tactics", "receipts", "confidence", "risk_label", "narrative", and "kpis". Do not include any text before or after the JSON object.

Example output format:
{
  "tactics": [
    {
      "id": "gaslighting",
      "name": "Gaslighting",
      "likelihood": 0.9,
      "severity": 4,
      "frequency": 3,
      "examples": ["That never happened, you're imagining things again."]
    }
  ],
  "receipts": [
    {
      "quote": "That never happened, you're imagining things again.",
      "category": "gaslighting",
      "source": "partner",
      "severity": 4
    }
  ],
  "confidence": 0.85,
  "risk_label": "medium",
  "narrative": "Several messages deny events you described in plain terms...",
  "kpis": {"messages_analyzed": 42}
}`

// VertexClient holds the pre-configured classifier model.
type VertexClient struct {
	ClassifierModel *genai.GenerativeModel
	baseClient      *genai.Client
}

// NewVertexClient creates a client with the classifier model fully configured.
func NewVertexClient(ctx context.Context, projectID, region, model string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("NewVertexClient: model cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	classifierModel := baseClient.GenerativeModel(model)
	classifierModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ClassifierSystemPrompt)},
	}
	classifierModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for this model.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  genai.Ptr[int32](8192),
	}
	// Transcripts of abusive conversations routinely trip the default
	// safety thresholds, which would block the very content we analyze.
	classifierModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ClassifierModel: classifierModel,
		baseClient:      baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
