package assistant

import (
	"encoding/json"
	"strings"
)

// FallbackReply is shown when the model's output cannot be presented to the
// user as-is.
const FallbackReply = "I'm sorry, I couldn't come up with a good answer to that. Could you rephrase your question?"

// Sanitize guards against malformed model output. Empty replies and replies
// that are raw structured payloads (the model ignoring the plain-text
// instruction) are replaced with a safe fallback so the user never sees
// machine output verbatim.
func Sanitize(reply string) string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return FallbackReply
	}
	if looksLikeJSON(reply) {
		return FallbackReply
	}
	return reply
}

func looksLikeJSON(s string) bool {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return false
	}
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}
