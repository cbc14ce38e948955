package usecase

import (
	"context"

	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

// ListMessagesInput selects a page of one conversation's history. AfterID
// takes precedence over Offset when set; it is the catch-up cursor clients
// use after a realtime gap.
type ListMessagesInput struct {
	ConversationID int64
	CallerID       int64
	AfterID        int64
	Limit          int
	Offset         int
}

// ListMessagesOutput is one ascending page plus whether older/newer history
// remains past it.
type ListMessagesOutput struct {
	Messages []messaging.Message
	HasMore  bool
}

// ListMessagesUseCase reads conversation history with membership enforced.
type ListMessagesUseCase struct {
	Repo repository.MessagingRepository

	DefaultLimit int
}

func NewListMessagesUseCase(repo repository.MessagingRepository, defaultLimit int) *ListMessagesUseCase {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &ListMessagesUseCase{Repo: repo, DefaultLimit: defaultLimit}
}

func (uc *ListMessagesUseCase) Execute(ctx context.Context, in ListMessagesInput) (*ListMessagesOutput, error) {
	if in.ConversationID <= 0 {
		return nil, apperrors.InvalidArg("conversation_id is required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.CallerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, messaging.ErrNotParticipant
	}

	limit := in.Limit
	if limit <= 0 || limit > 200 {
		limit = uc.DefaultLimit
	}

	msgs, hasMore, err := uc.Repo.ListMessages(ctx, in.ConversationID, in.AfterID, limit, in.Offset)
	if err != nil {
		return nil, err
	}
	return &ListMessagesOutput{Messages: msgs, HasMore: hasMore}, nil
}
