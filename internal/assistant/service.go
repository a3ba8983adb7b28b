package assistant

import (
	"context"

	"github.com/curasoft/emr-assist/pkg/logging"
)

// errorReply is shown when the model call itself fails. Nothing is retried;
// the user can simply ask again.
const errorReply = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

// Service turns free-form chat messages into guarded replies.
type Service struct {
	client Client
	logger *logging.Logger
}

// NewService creates the free-form chat service.
func NewService(client Client, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{client: client, logger: logger}
}

// Chat produces the assistant's reply for one turn. The reply is always
// presentable: model failures and malformed output degrade to apologies
// rather than surfacing errors to the user.
func (s *Service) Chat(ctx context.Context, history []Turn, message string) string {
	if s.client == nil {
		return errorReply
	}
	reply, err := s.client.Reply(ctx, history, message)
	if err != nil {
		s.logger.Error("assistant: reply failed", "error", err)
		return errorReply
	}
	return Sanitize(reply)
}
