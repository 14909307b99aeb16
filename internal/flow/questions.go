// Package flow implements the guided reflection conversation: the
// question sequence, the per-turn state machine, the reply classifier,
// and the post-session analysis pipeline.
package flow

import "github.com/mindmirror/mindmirror/internal/models"

// Questions is the fixed ordered sequence of reflection prompts. The
// sequence is immutable and shared read-only across the process.
var Questions = []string{
	"What moment from today is still on your mind?",
	"What did you feel in your body as it happened?",
	"What emotion would you name, if you had to pick one word?",
	"What did you want in that moment?",
	"What did you fear might happen?",
	"What story were you telling yourself about the other people involved?",
	"Looking back now, what do you notice that you missed then?",
	"If the same moment returned tomorrow, what would you watch for?",
	"What is one thing you can let rest, just for tonight?",
}

// NumQuestions is the session length. A session is complete exactly when
// its question index reaches this value; the stores mark IsComplete on
// the crossing update.
const NumQuestions = models.TotalQuestions

// Fixed conversation messages. The greeting and the first question go out
// in the same reply batch on session creation.
const (
	// MsgWelcome opens a new session.
	MsgWelcome = "Welcome to MindMirror. Let's take a quiet look at your day."

	// MsgHelp answers an empty or out-of-session message.
	MsgHelp = "Welcome to MindMirror. Whenever you're ready, send a few words about something you felt today and we'll begin."

	// MsgDecline answers an utterance with no reflective intent. The
	// session is cleared immediately after it is sent.
	MsgDecline = "I couldn't find a reflective intent in that message. Come back whenever you want to look at your mind again."

	// MsgWrappingUp acknowledges the final answer while the analysis runs.
	MsgWrappingUp = "Thank you. Gathering your reflection now…"

	// MsgSessionExpired is pushed when a session times out from inactivity.
	MsgSessionExpired = "Thank you for spending time with MindMirror today. Come back anytime."

	// MsgDailyLimitReached is sent instead of starting a session when the
	// user has already completed one today.
	MsgDailyLimitReached = "You've already completed today's reflection. Let it settle, and come back tomorrow."
)
