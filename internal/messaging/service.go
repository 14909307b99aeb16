// Package messaging provides outbound message delivery for MindMirror.
//
// Two delivery paths exist: a reply bound to a single-use token from one
// inbound event, and a durable push addressed by user ID. Replies are
// ordered bounded batches; pushes carry no ordering guarantee relative to
// replies.
package messaging

import (
	"context"

	"github.com/mindmirror/mindmirror/internal/models"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each backend implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// Reply sends an ordered batch of messages through a single-use reply
	// token. The batch must not exceed models.MaxReplyBatchSize.
	Reply(ctx context.Context, replyToken string, messages []string) error

	// Push sends messages to a user over the durable path. Unlimited uses.
	Push(ctx context.Context, userID string, messages []string) error
}

// chunkBatches splits messages into transport-sized batches preserving order.
func chunkBatches(messages []string, size int) [][]string {
	if size <= 0 {
		size = models.MaxReplyBatchSize
	}
	var batches [][]string
	for len(messages) > size {
		batches = append(batches, messages[:size])
		messages = messages[size:]
	}
	if len(messages) > 0 {
		batches = append(batches, messages)
	}
	return batches
}
