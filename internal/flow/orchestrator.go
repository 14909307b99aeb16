package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mindmirror/mindmirror/internal/genai"
	"github.com/mindmirror/mindmirror/internal/messaging"
	"github.com/mindmirror/mindmirror/internal/models"
	"github.com/mindmirror/mindmirror/internal/session"
	"github.com/mindmirror/mindmirror/internal/store"
	"github.com/mindmirror/mindmirror/internal/util"
)

// DefaultSessionTTL is the sliding idle window after which a session is
// force-closed with a pushed farewell.
const DefaultSessionTTL = 15 * time.Minute

// DefaultDailyLimit caps completed sessions per user per day. Zero disables
// the check.
const DefaultDailyLimit = 1

// metaSystemPrompt shapes the acknowledgement for a question back to the
// bot: a quiet observation that invites awareness, never advice.
const metaSystemPrompt = `You are a contemplative reflection guide.
The user has asked you a question instead of answering the reflection prompt.
Reply with one short, quiet sentence that gently turns their attention back
to what is moving in their own mind right now. No advice, no consolation,
no questions of your own.`

// UtteranceClassifier labels one user utterance.
type UtteranceClassifier interface {
	Classify(ctx context.Context, text string) models.Classification
}

// Analyzer runs the post-session analysis for one completed session.
type Analyzer interface {
	Run(ctx context.Context, userID string, answers []string)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSessionTTL overrides the sliding idle window.
func WithSessionTTL(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionTTL = d }
}

// WithDailyLimit overrides the completed-sessions-per-day cap. Zero or
// negative disables the check.
func WithDailyLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.dailyLimit = n }
}

// Orchestrator drives the per-turn conversation state machine. Events for
// the same user are serialized with a per-user mutex held for the duration
// of one orchestration step; timer firings and the detached analysis task
// re-check session presence instead of taking the lock.
type Orchestrator struct {
	sessions    session.Store
	timers      *session.ExpiryTimer
	classifier  UtteranceClassifier
	genaiClient genai.ClientInterface
	analyzer    Analyzer
	messenger   messaging.Service
	reflections store.Store

	sessionTTL time.Duration
	dailyLimit int

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewOrchestrator wires the conversation state machine.
func NewOrchestrator(
	sessions session.Store,
	timers *session.ExpiryTimer,
	classifier UtteranceClassifier,
	genaiClient genai.ClientInterface,
	analyzer Analyzer,
	messenger messaging.Service,
	reflections store.Store,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		sessions:    sessions,
		timers:      timers,
		classifier:  classifier,
		genaiClient: genaiClient,
		analyzer:    analyzer,
		messenger:   messenger,
		reflections: reflections,
		sessionTTL:  DefaultSessionTTL,
		dailyLimit:  DefaultDailyLimit,
		userLocks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// lockUser returns the mutex serializing orchestration steps for one user.
// Entries live for the process lifetime; the map is bounded by the active
// user population.
func (o *Orchestrator) lockUser(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	return lock
}

// HandleEvent processes one inbound event. All outbound messages for the
// turn are queued on the caller's reply handle; the caller flushes it once
// after this returns.
func (o *Orchestrator) HandleEvent(ctx context.Context, event models.InboundEvent, reply *messaging.ReplyHandle) error {
	if err := event.Validate(); err != nil {
		slog.Warn("Dropping invalid inbound event", "error", err)
		return err
	}

	lock := o.lockUser(event.UserID)
	lock.Lock()
	defer lock.Unlock()

	text := strings.TrimSpace(event.Text)

	sess, err := o.sessions.Get(ctx, event.UserID)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "userID", event.UserID)
		reply.Queue(ctx, MsgHelp)
		return nil
	}

	if sess != nil && sess.IsComplete {
		// Completion clears the session in the same step; a lingering
		// complete session means a crashed step. Don't restart on top of it.
		reply.Queue(ctx, MsgHelp)
		return nil
	}

	if sess == nil {
		o.handleNoSession(ctx, event.UserID, text, reply)
		return nil
	}

	o.handleActiveSession(ctx, event.UserID, text, sess, reply)
	return nil
}

// handleNoSession covers case 1 (fresh start) and case 3 (nothing to do).
func (o *Orchestrator) handleNoSession(ctx context.Context, userID, text string, reply *messaging.ReplyHandle) {
	if text == "" {
		reply.Queue(ctx, MsgHelp)
		return
	}

	if !o.sessionAllowed(ctx, userID) {
		slog.Info("Daily limit reached, not starting session", "userID", userID)
		reply.Queue(ctx, MsgDailyLimitReached)
		return
	}

	if err := o.sessions.Create(ctx, userID); err != nil {
		slog.Error("Session create failed", "error", err, "userID", userID)
		reply.Queue(ctx, MsgHelp)
		return
	}
	o.armTimer(userID)

	slog.Info("Session started", "userID", userID)
	reply.Queue(ctx, MsgWelcome, Questions[0])
}

// handleActiveSession covers case 2: classify, branch, advance.
func (o *Orchestrator) handleActiveSession(ctx context.Context, userID, text string, sess *models.Session, reply *messaging.ReplyHandle) {
	// Every inbound event extends the idle deadline, valid or not.
	o.armTimer(userID)
	if err := o.sessions.Touch(ctx, userID); err != nil {
		slog.Warn("Session touch failed", "error", err, "userID", userID)
	}

	classification := o.classifier.Classify(ctx, text)
	slog.Debug("Utterance classified", "userID", userID, "classification", classification)

	switch classification {
	case models.ClassificationRejected:
		reply.Queue(ctx, MsgDecline)
		o.endSession(ctx, userID)
		slog.Info("Session rejected and cleared", "userID", userID)

	case models.ClassificationMeta:
		if ack := o.metaAcknowledgement(ctx, text); ack != "" {
			reply.Queue(ctx, ack)
		}
		reply.Queue(ctx, Questions[sess.CurrentQuestionIndex])

	default: // VALID
		updated, err := o.sessions.Update(ctx, userID, text)
		if err != nil || updated == nil {
			slog.Error("Session update failed", "error", err, "userID", userID)
			reply.Queue(ctx, MsgHelp)
			return
		}

		if updated.CurrentQuestionIndex < NumQuestions {
			reply.Queue(ctx, Questions[updated.CurrentQuestionIndex])
			return
		}

		reply.Queue(ctx, MsgWrappingUp)
		o.endSession(ctx, userID)
		o.dispatchAnalysis(userID, updated.Answers)
		slog.Info("Session complete", "userID", userID, "answers", len(updated.Answers))
	}
}

// endSession cancels the idle timer and clears the session. Both halves
// are idempotent.
func (o *Orchestrator) endSession(ctx context.Context, userID string) {
	o.timers.Cancel(userID)
	if err := o.sessions.Clear(ctx, userID); err != nil {
		slog.Warn("Session clear failed", "error", err, "userID", userID)
	}
}

// dispatchAnalysis hands the completed answers to the analysis pipeline as
// a detached task. The webhook acknowledgement never waits on it.
func (o *Orchestrator) dispatchAnalysis(userID string, answers []string) {
	detached := make([]string, len(answers))
	copy(detached, answers)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Analysis task panicked", "panic", r, "userID", userID)
			}
		}()
		o.analyzer.Run(context.Background(), userID, detached)
	}()
}

// armTimer re-arms the sliding idle timer for the user.
func (o *Orchestrator) armTimer(userID string) {
	o.timers.Arm(userID, o.sessionTTL, func() {
		o.expireSession(userID)
	})
}

// expireSession fires on idle timeout: one farewell push, then clear. A
// fire after the session was already cleared is a guarded no-op.
func (o *Orchestrator) expireSession(userID string) {
	ctx := context.Background()

	sess, err := o.sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("Expiry session lookup failed", "error", err, "userID", userID)
		return
	}
	if sess == nil {
		slog.Debug("Expiry fired for absent session, ignoring", "userID", userID)
		return
	}

	if err := o.messenger.Push(ctx, userID, []string{MsgSessionExpired}); err != nil {
		slog.Error("Failed to push expiry message", "error", err, "userID", userID)
	}
	if err := o.sessions.Clear(ctx, userID); err != nil {
		slog.Warn("Expiry session clear failed", "error", err, "userID", userID)
	}
	slog.Info("Session expired", "userID", userID)
}

// sessionAllowed enforces the daily completed-session cap. Any check
// failure allows the session: the limit is a guard rail, not a gate worth
// blocking a user over.
func (o *Orchestrator) sessionAllowed(ctx context.Context, userID string) bool {
	if o.dailyLimit <= 0 || o.reflections == nil {
		return true
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := o.reflections.CountReflectionsSince(ctx, util.AnonymizeUserID(userID), startOfDay)
	if err != nil {
		slog.Warn("Usage limit check failed, allowing session", "error", err, "userID", userID)
		return true
	}
	return count < o.dailyLimit
}

// metaAcknowledgement generates a contextual one-liner for a question back
// to the bot. On failure the acknowledgement is simply skipped; the current
// question is re-emitted either way.
func (o *Orchestrator) metaAcknowledgement(ctx context.Context, text string) string {
	ack, err := o.genaiClient.GeneratePromptWithContext(ctx, metaSystemPrompt, text)
	if err != nil {
		slog.Warn("Meta acknowledgement generation failed", "error", err)
		return ""
	}
	return strings.TrimSpace(ack)
}
