package flow

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"

	"github.com/mindmirror/mindmirror/internal/genai"
	"github.com/mindmirror/mindmirror/internal/models"
	"github.com/mindmirror/mindmirror/internal/reconcile"
	"github.com/mindmirror/mindmirror/internal/store"
)

func TestBuildSummaryJoinsAnswers(t *testing.T) {
	got := BuildSummary([]string{"one", "two", "three"})
	if got != "one\ntwo\nthree" {
		t.Errorf("BuildSummary = %q", got)
	}
}

func TestBuildSummaryTruncatesWithMarker(t *testing.T) {
	long := strings.Repeat("a", SummaryTruncationCutoff+500)
	got := BuildSummary([]string{long})

	if !strings.HasSuffix(got, SummaryTruncationMarker) {
		t.Error("truncated summary must end with the marker")
	}
	if len(got) != SummaryTruncationCutoff+len(SummaryTruncationMarker) {
		t.Errorf("truncated summary length = %d, want %d", len(got), SummaryTruncationCutoff+len(SummaryTruncationMarker))
	}
}

func TestBuildSummaryTruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes guarantee the cutoff lands mid-rune.
	long := strings.Repeat("心", SummaryTruncationCutoff)
	got := BuildSummary([]string{long})

	if !utf8.ValidString(got) {
		t.Fatal("truncated summary must remain valid UTF-8")
	}
	body := strings.TrimSuffix(got, SummaryTruncationMarker)
	if body == got {
		t.Error("truncated summary must end with the marker")
	}
	if len(body) > SummaryTruncationCutoff {
		t.Errorf("truncated body length = %d, want <= %d", len(body), SummaryTruncationCutoff)
	}
}

func TestPipelinePersistsAndPushes(t *testing.T) {
	gen := &mockGenAI{response: "Here you go:\n```json\n{\"comment\":\"Notice the holding on.\",\"factors\":[\"anger\",\"unlisted\"],\"categories\":[\"affliction\"]}\n```"}
	st := store.NewInMemoryStore()
	messenger := newMockMessenger()

	p := NewPipeline(gen, st, messenger)
	p.Run(context.Background(), "user-1", []string{"first", "second"})

	records := st.Reflections()
	if len(records) != 1 {
		t.Fatalf("expected 1 persisted reflection, got %d", len(records))
	}
	rec := records[0]
	if rec.Comment != "Notice the holding on." {
		t.Errorf("persisted comment = %q", rec.Comment)
	}
	if rec.UserHash == "user-1" || !strings.HasPrefix(rec.UserHash, "user_") {
		t.Errorf("persisted user hash must be anonymized, got %q", rec.UserHash)
	}
	if rec.Summary != "first\nsecond" {
		t.Errorf("persisted summary = %q", rec.Summary)
	}
	if len(rec.Factors) != 2 {
		t.Fatalf("expected 2 factors, got %d", len(rec.Factors))
	}
	if len(rec.Factors[0].Roots) == 0 {
		t.Error("known factor must carry roots")
	}
	if len(rec.Factors[1].Roots) != 0 {
		t.Error("unknown factor must carry an empty root set")
	}
	if len(rec.Roots) != 1 || rec.Roots[0] != "aversion" {
		t.Errorf("derived roots = %v, want [aversion]", rec.Roots)
	}

	pushes := messenger.pushBatches()
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(pushes))
	}
	assertBatch(t, pushes[0], "Notice the holding on.")
}

func TestPipelineGeneratorFailureUsesFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind genai.FailureKind
	}{
		{"timeout", context.DeadlineExceeded, genai.FailureTimeout},
		{"rate limited", &openai.Error{StatusCode: http.StatusTooManyRequests}, genai.FailureRateLimited},
		{"generic", errors.New("boom"), genai.FailureGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewInMemoryStore()
			messenger := newMockMessenger()
			p := NewPipeline(&mockGenAI{err: tt.err}, st, messenger)

			p.Run(context.Background(), "user-1", []string{"an answer"})

			want := fallbackCommentFor(tt.kind)
			pushes := messenger.pushBatches()
			if len(pushes) != 1 {
				t.Fatalf("expected 1 push, got %d", len(pushes))
			}
			assertBatch(t, pushes[0], want)

			records := st.Reflections()
			if len(records) != 1 || records[0].Comment != want {
				t.Errorf("fallback comment must still be persisted")
			}
		})
	}
}

func TestPipelineMalformedOutputUsesSentinel(t *testing.T) {
	st := store.NewInMemoryStore()
	messenger := newMockMessenger()
	p := NewPipeline(&mockGenAI{response: "{broken json"}, st, messenger)

	p.Run(context.Background(), "user-1", []string{"an answer"})

	pushes := messenger.pushBatches()
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(pushes))
	}
	assertBatch(t, pushes[0], reconcile.FallbackComment)
}

func TestPipelineStoreFailureIsSwallowed(t *testing.T) {
	gen := &mockGenAI{response: `{"comment":"ok","factors":[],"categories":[]}`}
	messenger := newMockMessenger()
	p := NewPipeline(gen, &failingStore{}, messenger)

	p.Run(context.Background(), "user-1", []string{"an answer"})

	// The closing comment still reaches the user.
	pushes := messenger.pushBatches()
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push despite store failure, got %d", len(pushes))
	}
	assertBatch(t, pushes[0], "ok")
}

// failingStore rejects every write.
type failingStore struct{}

func (f *failingStore) SaveReflection(ctx context.Context, r models.Reflection) error {
	return errors.New("unreachable")
}

func (f *failingStore) CountReflectionsSince(ctx context.Context, userHash string, since time.Time) (int, error) {
	return 0, errors.New("unreachable")
}

func (f *failingStore) Close() error { return nil }
