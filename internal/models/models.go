// Package models defines the core data structures for MindMirror.
//
// It includes types for inbound webhook events, per-user session state,
// reply classification, and the structured analysis produced at the end
// of a reflection session. These types are shared across modules.
package models

import (
	"errors"
	"time"
)

// Classification buckets a single user utterance during an active session.
type Classification string

const (
	// ClassificationValid marks a sincere answer to the current question.
	ClassificationValid Classification = "VALID"
	// ClassificationMeta marks a question back to the bot or a request for help.
	ClassificationMeta Classification = "META"
	// ClassificationRejected marks an utterance unrelated to reflection.
	ClassificationRejected Classification = "REJECTED"
)

// Validation constants for input validation
const (
	// MaxReplyBatchSize is the maximum number of messages the transport
	// accepts on a single reply handle (LINE caps reply batches at 5).
	MaxReplyBatchSize = 5
	// MaxInboundTextLength caps the accepted length of one inbound utterance.
	MaxInboundTextLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID        = errors.New("user ID cannot be empty")
	ErrSessionExists      = errors.New("session already exists for user")
	ErrSessionNotFound    = errors.New("no session found for user")
	ErrReplyHandleUsed    = errors.New("reply handle has already been used")
	ErrInboundTextTooLong = errors.New("inbound text exceeds maximum length")
)

// InboundEvent is one text message delivered by the transport webhook.
// ReplyToken is the single-use handle bound to this specific event.
type InboundEvent struct {
	UserID     string `json:"userId"`
	Text       string `json:"text"`
	ReplyToken string `json:"replyToken"`
	Timestamp  int64  `json:"timestamp"`
}

// Validate checks that an inbound event can be processed.
func (e InboundEvent) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if len(e.Text) > MaxInboundTextLength {
		return ErrInboundTextTooLong
	}
	return nil
}

// TotalQuestions is the fixed number of reflection prompts in a session.
// A session is complete exactly when CurrentQuestionIndex reaches this
// value; the stores mark IsComplete on the update that crosses it.
const TotalQuestions = 9

// Session holds the conversational position of one user.
// Exactly one session exists per active user; it is owned by the session
// store and mutated only by the orchestrator.
type Session struct {
	UserID               string    `json:"userId"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	Answers              []string  `json:"answers"`
	IsComplete           bool      `json:"isComplete"`
	LastActivityAt       time.Time `json:"lastActivityAt"`
}

// EnrichedFactor is one mental-factor label together with the root
// categories the taxonomy maps it to. Unknown labels carry an empty root set.
type EnrichedFactor struct {
	Name  string   `json:"name"`
	Roots []string `json:"roots"`
}

// AnalysisResult is the reconciled output of the post-session analysis.
type AnalysisResult struct {
	Comment      string           `json:"comment"`
	Factors      []EnrichedFactor `json:"factors"`
	Categories   []string         `json:"categories"`
	DerivedRoots []string         `json:"derivedRoots"`
}

// Reflection is the persisted record of one completed session.
// UserHash is an anonymized user identifier, never the raw transport ID.
type Reflection struct {
	ID         string           `json:"id"`
	UserHash   string           `json:"userHash"`
	Summary    string           `json:"summary"`
	Comment    string           `json:"comment"`
	Factors    []EnrichedFactor `json:"factors"`
	Categories []string         `json:"categories"`
	Roots      []string         `json:"roots"`
	CreatedAt  time.Time        `json:"createdAt"`
}
