package messaging

import "shorewatch/pkg/apperrors"

// Domain-level errors shared across usecases and presentation.
var (
	ErrNotParticipant       = apperrors.Forbidden("caller is not a participant in this conversation")
	ErrConversationNotFound = apperrors.NotFound("conversation not found")
	ErrRecipientNotFound    = apperrors.NotFound("recipient not found")
)
