package models

import (
	"errors"
	"strings"
	"testing"
)

func TestInboundEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   InboundEvent
		wantErr error
	}{
		{
			name:  "valid event",
			event: InboundEvent{UserID: "user-1", Text: "hello", ReplyToken: "tok"},
		},
		{
			name:  "empty text is allowed",
			event: InboundEvent{UserID: "user-1"},
		},
		{
			name:    "missing user ID",
			event:   InboundEvent{Text: "hello"},
			wantErr: ErrEmptyUserID,
		},
		{
			name:    "oversized text",
			event:   InboundEvent{UserID: "user-1", Text: strings.Repeat("a", MaxInboundTextLength+1)},
			wantErr: ErrInboundTextTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]int{"count": 1})
	if ok.Status != APIStatusOK || ok.Result == nil || ok.Message != "" {
		t.Errorf("Success response malformed: %+v", ok)
	}

	withMsg := SuccessWithMessage("done", nil)
	if withMsg.Status != APIStatusOK || withMsg.Message != "done" {
		t.Errorf("SuccessWithMessage response malformed: %+v", withMsg)
	}

	fail := Error("boom")
	if fail.Status != APIStatusError || fail.Message != "boom" || fail.Result != nil {
		t.Errorf("Error response malformed: %+v", fail)
	}
}
