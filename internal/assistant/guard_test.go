package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePassesPlainText(t *testing.T) {
	assert.Equal(t, "Our clinic opens at 9am.", Sanitize("Our clinic opens at 9am."))
}

func TestSanitizeTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "Hello!", Sanitize("  Hello!\n"))
}

func TestSanitizeEmptyReply(t *testing.T) {
	assert.Equal(t, FallbackReply, Sanitize("   "))
}

func TestSanitizeRawJSONObject(t *testing.T) {
	assert.Equal(t, FallbackReply, Sanitize(`{"action":"book","doctor":"doc-1"}`))
}

func TestSanitizeRawJSONArray(t *testing.T) {
	assert.Equal(t, FallbackReply, Sanitize(`[{"slot":"2024-07-15T09:00:00"}]`))
}

func TestSanitizeBraceProseIsKept(t *testing.T) {
	// Text that merely starts with a brace but is not valid JSON stays.
	assert.Equal(t, "{see the front desk for details", Sanitize("{see the front desk for details"))
}

type stubClient struct {
	reply string
	err   error
}

func (s *stubClient) Reply(_ context.Context, _ []Turn, _ string) (string, error) {
	return s.reply, s.err
}

func TestServiceChatGuardsReply(t *testing.T) {
	svc := NewService(&stubClient{reply: `{"raw":true}`}, nil)
	got := svc.Chat(context.Background(), nil, "hi")
	assert.Equal(t, FallbackReply, got)
}

func TestServiceChatModelError(t *testing.T) {
	svc := NewService(&stubClient{err: errors.New("quota exceeded")}, nil)
	got := svc.Chat(context.Background(), nil, "hi")
	assert.Equal(t, errorReply, got)
}

func TestServiceChatHappyPath(t *testing.T) {
	svc := NewService(&stubClient{reply: "We're open weekdays 9 to 5."}, nil)
	got := svc.Chat(context.Background(), []Turn{{Role: "user", Text: "hours?"}}, "what are your hours")
	assert.Equal(t, "We're open weekdays 9 to 5.", got)
}
