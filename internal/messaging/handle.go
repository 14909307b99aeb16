package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mindmirror/mindmirror/internal/models"
)

// ReplyHandle coalesces every message produced while handling one inbound
// event into a single ordered batch sent through that event's reply token.
// The handle is single-use: messages queued after Flush, or a second Flush,
// are routed to the durable push path instead of the expired token.
type ReplyHandle struct {
	svc    Service
	userID string
	token  string

	mu      sync.Mutex
	pending []string
	used    bool
}

// NewReplyHandle binds a handle to one inbound event's reply token.
func NewReplyHandle(svc Service, userID, replyToken string) *ReplyHandle {
	return &ReplyHandle{svc: svc, userID: userID, token: replyToken}
}

// Queue appends messages to the pending reply batch. Messages queued after
// the handle was flushed are pushed immediately over the durable path.
func (h *ReplyHandle) Queue(ctx context.Context, messages ...string) {
	h.mu.Lock()
	if !h.used {
		h.pending = append(h.pending, messages...)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	slog.Warn("ReplyHandle Queue after flush, routing to push", "userID", h.userID, "count", len(messages))
	if err := h.svc.Push(ctx, h.userID, messages); err != nil {
		slog.Error("ReplyHandle late push failed", "error", err, "userID", h.userID)
	}
}

// Flush sends the coalesced batch through the reply token, at most once.
// Overflow past the transport's batch limit is deferred to the durable push
// path rather than dropped. A second flush returns models.ErrReplyHandleUsed.
func (h *ReplyHandle) Flush(ctx context.Context) error {
	h.mu.Lock()
	if h.used {
		h.mu.Unlock()
		return models.ErrReplyHandleUsed
	}
	h.used = true
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	batch := pending
	var overflow []string
	if len(batch) > models.MaxReplyBatchSize {
		overflow = batch[models.MaxReplyBatchSize:]
		batch = batch[:models.MaxReplyBatchSize]
	}

	if err := h.svc.Reply(ctx, h.token, batch); err != nil {
		slog.Error("ReplyHandle Flush reply failed", "error", err, "userID", h.userID, "batchSize", len(batch))
		return err
	}

	if len(overflow) > 0 {
		slog.Debug("ReplyHandle Flush deferring overflow to push", "userID", h.userID, "overflow", len(overflow))
		if err := h.svc.Push(ctx, h.userID, overflow); err != nil {
			slog.Error("ReplyHandle overflow push failed", "error", err, "userID", h.userID)
			return err
		}
	}
	return nil
}

// Used reports whether the handle has been flushed.
func (h *ReplyHandle) Used() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}
