package server

import (
	"errors"

	"github.com/npezzotti/gossip/internal/membership"
)

var (
	ErrNotChatMember      = errors.New("sender is not a member of the chat")
	ErrNotMessageSender   = errors.New("only the sender can delete a message")
	ErrNotConnected       = errors.New("user has no live connection")
	ErrShuttingDown       = errors.New("chat server is shutting down")
	ErrMissingChat        = errors.New("chat id is required")
	ErrEmptyMessage       = errors.New("message has no content or attachments")
	ErrTooManyAttachments = errors.New("too many attachments")
)

// IsValidationError reports whether err rejects malformed input rather than
// a missing resource or a permission check.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingChat,
		ErrEmptyMessage,
		ErrTooManyAttachments,
		membership.ErrNotGroupChat,
		membership.ErrGroupSizeExceeded,
		membership.ErrBelowMinimumSize,
		membership.ErrInvalidName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
