package assistant

import "github.com/curasoft/emr-assist/internal/conversation"

// HistoryLimit caps how much of the conversation log is replayed to the
// model on each free-form turn.
const HistoryLimit = 20

// History converts the tail of a conversation's message log into model
// turns. Both chat surfaces build their prompt context through here so
// the truncation policy cannot drift between them.
func History(msgs []conversation.Message) []Turn {
	if len(msgs) > HistoryLimit {
		msgs = msgs[len(msgs)-HistoryLimit:]
	}
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: string(m.Role), Text: m.Text})
	}
	return turns
}
