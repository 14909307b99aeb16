package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mindmirror/mindmirror/internal/models"
)

// Default LINE Messaging API endpoints.
const (
	DefaultLineAPIBase = "https://api.line.me/v2/bot"
	lineReplyPath      = "/message/reply"
	linePushPath       = "/message/push"

	// DefaultHTTPTimeout bounds each delivery call.
	DefaultHTTPTimeout = 10 * time.Second
)

// LineOpts holds configuration options for the LINE messaging backend.
type LineOpts struct {
	ChannelToken string
	APIBase      string
	HTTPClient   *http.Client
}

// LineOption defines a configuration option for the LINE backend.
type LineOption func(*LineOpts)

// WithChannelToken sets the channel access token, overriding LINE_CHANNEL_TOKEN.
func WithChannelToken(token string) LineOption {
	return func(o *LineOpts) { o.ChannelToken = token }
}

// WithAPIBase overrides the API base URL (used in tests).
func WithAPIBase(base string) LineOption {
	return func(o *LineOpts) { o.APIBase = base }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) LineOption {
	return func(o *LineOpts) { o.HTTPClient = c }
}

// LineService implements Service against the LINE Messaging API reply and
// push endpoints. Webhook signature verification is handled upstream of
// this package.
type LineService struct {
	token   string
	apiBase string
	client  *http.Client
}

// NewLineService creates a LINE-backed messaging service. The channel token
// falls back to the LINE_CHANNEL_TOKEN environment variable.
func NewLineService(opts ...LineOption) (*LineService, error) {
	var cfg LineOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelToken == "" {
		cfg.ChannelToken = os.Getenv("LINE_CHANNEL_TOKEN")
	}
	if cfg.ChannelToken == "" {
		return nil, fmt.Errorf("LINE channel token must be provided")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultLineAPIBase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	slog.Debug("LineService created", "apiBase", cfg.APIBase)
	return &LineService{token: cfg.ChannelToken, apiBase: cfg.APIBase, client: cfg.HTTPClient}, nil
}

// ValidateAndCanonicalizeRecipient trims whitespace and rejects empty or
// whitespace-containing user IDs. LINE user IDs are opaque tokens, so no
// further normalization applies.
func (s *LineService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical := strings.TrimSpace(recipient)
	if canonical == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if strings.ContainsAny(canonical, " \t\n") {
		return "", fmt.Errorf("invalid user ID %q: contains whitespace", recipient)
	}
	return canonical, nil
}

type lineTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func lineMessages(messages []string) []lineTextMessage {
	out := make([]lineTextMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, lineTextMessage{Type: "text", Text: m})
	}
	return out
}

// Reply sends an ordered batch through a single-use reply token.
func (s *LineService) Reply(ctx context.Context, replyToken string, messages []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token cannot be empty")
	}
	body := struct {
		ReplyToken string            `json:"replyToken"`
		Messages   []lineTextMessage `json:"messages"`
	}{ReplyToken: replyToken, Messages: lineMessages(messages)}

	if err := s.post(ctx, lineReplyPath, body); err != nil {
		slog.Error("LineService Reply failed", "error", err, "messages", len(messages))
		return fmt.Errorf("failed to send reply: %w", err)
	}
	slog.Debug("LineService Reply succeeded", "messages", len(messages))
	return nil
}

// Push sends messages over the durable path, batching to the transport limit.
func (s *LineService) Push(ctx context.Context, userID string, messages []string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(userID)
	if err != nil {
		return err
	}

	for _, batch := range chunkBatches(messages, models.MaxReplyBatchSize) {
		body := struct {
			To       string            `json:"to"`
			Messages []lineTextMessage `json:"messages"`
		}{To: canonical, Messages: lineMessages(batch)}

		if err := s.post(ctx, linePushPath, body); err != nil {
			slog.Error("LineService Push failed", "error", err, "to", canonical, "messages", len(batch))
			return fmt.Errorf("failed to push to %s: %w", canonical, err)
		}
	}
	slog.Debug("LineService Push succeeded", "to", canonical, "messages", len(messages))
	return nil
}

func (s *LineService) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("LINE API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
