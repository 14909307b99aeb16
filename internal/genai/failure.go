package genai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
)

// FailureKind distinguishes generator failures that warrant different
// user-facing fallback messages.
type FailureKind string

const (
	// FailureRateLimited indicates the API rejected the call with HTTP 429.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureTimeout indicates the bounded call deadline elapsed.
	FailureTimeout FailureKind = "timeout"
	// FailureGeneric covers every other generator failure.
	FailureGeneric FailureKind = "generic"
)

// ClassifyFailure maps a generation error to its failure kind.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureGeneric
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return FailureRateLimited
	}
	return FailureGeneric
}
