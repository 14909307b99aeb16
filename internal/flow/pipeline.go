package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mindmirror/mindmirror/internal/genai"
	"github.com/mindmirror/mindmirror/internal/messaging"
	"github.com/mindmirror/mindmirror/internal/models"
	"github.com/mindmirror/mindmirror/internal/reconcile"
	"github.com/mindmirror/mindmirror/internal/store"
	"github.com/mindmirror/mindmirror/internal/taxonomy"
	"github.com/mindmirror/mindmirror/internal/util"
)

// Summary truncation bounds for the generator input.
const (
	// SummaryTruncationCutoff is the character count at which the joined
	// answer text is cut before being sent to the generator.
	SummaryTruncationCutoff = 4000
	// SummaryTruncationMarker is appended whenever truncation happens, so
	// the generator and the stored record both see that content was cut.
	SummaryTruncationMarker = " …[answers truncated]"
)

// analysisSystemPrompt requests the structured JSON contract that the
// reconciler parses. The generator routinely violates it; that is expected.
const analysisSystemPrompt = `You are a contemplative reflection guide grounded in Buddhist psychology.
You receive the answers a person gave across one guided reflection session.
Respond with a single JSON object and nothing else, in this shape:
{
  "comment": "one short, quiet observation that invites awareness (no advice, no consolation)",
  "factors": ["mental factor labels such as anger, craving, worry, mindfulness"],
  "categories": ["broad groupings such as affliction, secondary affliction, wholesome"]
}`

// fallbackComments close the session when the generator fails, keyed by
// failure kind so rate limiting reads differently from a timeout.
var fallbackComments = map[genai.FailureKind]string{
	genai.FailureRateLimited: "The mirror is a little crowded right now. What you noticed today still counts; rest with it.",
	genai.FailureTimeout:     "Your reflection took longer than I could hold. The looking itself was the practice today.",
	genai.FailureGeneric:     "I couldn't put your reflection into words this time. The noticing itself still counts.",
}

// Pipeline turns one completed session's answers into a persisted
// reflection record and a pushed closing comment. It always runs detached
// from the webhook turn that triggered it.
type Pipeline struct {
	genaiClient genai.ClientInterface
	store       store.Store
	messenger   messaging.Service
}

// NewPipeline creates an analysis pipeline.
func NewPipeline(genaiClient genai.ClientInterface, st store.Store, messenger messaging.Service) *Pipeline {
	return &Pipeline{
		genaiClient: genaiClient,
		store:       st,
		messenger:   messenger,
	}
}

// BuildSummary joins the ordered answers into one generator input,
// truncating deterministically at the cutoff with an explicit marker.
func BuildSummary(answers []string) string {
	summary := strings.Join(answers, "\n")
	if len(summary) > SummaryTruncationCutoff {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := SummaryTruncationCutoff
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + SummaryTruncationMarker
		slog.Debug("Analysis summary truncated", "cutoff", cut)
	}
	return summary
}

// Run executes the full analysis for one completed session: generate,
// reconcile, enrich, persist, push. No failure in any step is allowed to
// escape; each degrades to a logged fallback so the user always receives
// exactly one closing message.
func (p *Pipeline) Run(ctx context.Context, userID string, answers []string) {
	slog.Info("Analysis pipeline started", "userID", userID, "answers", len(answers))

	summary := BuildSummary(answers)
	result := p.analyze(ctx, summary)

	p.persist(ctx, userID, summary, result)

	if err := p.messenger.Push(ctx, userID, []string{result.Comment}); err != nil {
		slog.Error("Failed to push closing comment", "error", err, "userID", userID)
	}
	slog.Info("Analysis pipeline finished", "userID", userID)
}

// analyze calls the generator and reconciles its output. Generator failure
// yields a fallback comment keyed by failure kind; malformed output is
// absorbed by the reconciler. Either way a usable result comes back.
func (p *Pipeline) analyze(ctx context.Context, summary string) models.AnalysisResult {
	raw, err := p.genaiClient.GeneratePromptWithContext(ctx, analysisSystemPrompt, summary)
	if err != nil {
		kind := genai.ClassifyFailure(err)
		slog.Error("Analysis generation failed", "error", err, "failureKind", kind)
		return models.AnalysisResult{
			Comment:      fallbackComments[kind],
			Factors:      []models.EnrichedFactor{},
			Categories:   []string{},
			DerivedRoots: []string{},
		}
	}

	parsed := reconcile.Parse(raw)
	if parsed.ParseFailed {
		slog.Warn("Analysis output failed to parse, using sentinel result")
	}

	comment := parsed.Comment
	if comment == "" {
		// An empty comment cannot be pushed as a message.
		comment = reconcile.FallbackComment
	}

	factors := taxonomy.Enrich(parsed.Labels)
	return models.AnalysisResult{
		Comment:      comment,
		Factors:      factors,
		Categories:   parsed.Categories,
		DerivedRoots: taxonomy.DeriveRoots(factors),
	}
}

// persist writes the reflection record. Failures are logged only; the
// user never sees a persistence error.
func (p *Pipeline) persist(ctx context.Context, userID, summary string, result models.AnalysisResult) {
	record := models.Reflection{
		ID:         uuid.NewString(),
		UserHash:   util.AnonymizeUserID(userID),
		Summary:    summary,
		Comment:    result.Comment,
		Factors:    result.Factors,
		Categories: result.Categories,
		Roots:      result.DerivedRoots,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.store.SaveReflection(ctx, record); err != nil {
		slog.Error("Failed to persist reflection", "error", err, "userHash", record.UserHash)
		return
	}
	slog.Debug("Reflection persisted", "id", record.ID, "userHash", record.UserHash)
}

// fallbackCommentFor exposes the fallback table for tests and reuse.
func fallbackCommentFor(kind genai.FailureKind) string {
	if c, ok := fallbackComments[kind]; ok {
		return c
	}
	return fallbackComments[genai.FailureGeneric]
}
