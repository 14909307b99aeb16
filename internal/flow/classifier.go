package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mindmirror/mindmirror/internal/genai"
	"github.com/mindmirror/mindmirror/internal/models"
)

// classifierSystemPrompt constrains the model to a single-token verdict.
const classifierSystemPrompt = `You are a strict classifier for a guided reflection conversation.
Classify the user's message into exactly one of:
A. a sincere answer to a reflection question
B. a question back to the bot, or a request for guidance
C. off-topic, nonsensical, or mocking content with no reflective intent

Output exactly one character: A, B, or C. No other text.`

// Classifier labels one user utterance as VALID, META, or REJECTED.
type Classifier struct {
	genaiClient genai.ClientInterface
}

// NewClassifier creates a classifier backed by the given generation client.
func NewClassifier(genaiClient genai.ClientInterface) *Classifier {
	return &Classifier{genaiClient: genaiClient}
}

// Classify returns the classification for one utterance. Any failure
// (timeout, API error, unexpected output) fails open to VALID: the
// classifier is a UX refinement and must never stall the conversation.
func (c *Classifier) Classify(ctx context.Context, text string) models.Classification {
	raw, err := c.genaiClient.GeneratePromptWithContext(ctx, classifierSystemPrompt, text)
	if err != nil {
		slog.Warn("Classifier failed, defaulting to VALID", "error", err, "failureKind", genai.ClassifyFailure(err))
		return models.ClassificationValid
	}

	verdict := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(verdict, "A"):
		return models.ClassificationValid
	case strings.HasPrefix(verdict, "B"):
		return models.ClassificationMeta
	case strings.HasPrefix(verdict, "C"):
		return models.ClassificationRejected
	default:
		slog.Warn("Classifier returned unexpected verdict, defaulting to VALID", "verdict", raw)
		return models.ClassificationValid
	}
}
