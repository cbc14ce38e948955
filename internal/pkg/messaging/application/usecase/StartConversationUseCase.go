package usecase

import (
	"context"

	identityport "shorewatch/internal/pkg/identity/port"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

// StartConversationInput identifies the two ends of the pair. Order does not
// matter; both directions resolve to the same conversation.
type StartConversationInput struct {
	CallerID    int64
	RecipientID int64
}

// StartConversationUseCase resolves the single conversation for a user pair,
// creating it on first contact.
// Hexagonal: depends on repository and directory ports only.
// One class per use case (own file).
type StartConversationUseCase struct {
	Repo      repository.MessagingRepository
	Directory identityport.Directory
}

func NewStartConversationUseCase(repo repository.MessagingRepository, dir identityport.Directory) *StartConversationUseCase {
	return &StartConversationUseCase{Repo: repo, Directory: dir}
}

// Execute finds or creates the conversation for the pair. Two callers racing
// on first contact both end up with the same conversation: the loser of the
// insert race re-reads the row the winner created.
func (uc *StartConversationUseCase) Execute(ctx context.Context, in StartConversationInput) (*messaging.Conversation, error) {
	lo, hi, err := messaging.CanonicalPair(in.CallerID, in.RecipientID)
	if err != nil {
		return nil, err
	}

	exists, err := uc.Directory.Exists(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, messaging.ErrRecipientNotFound
	}

	conv, err := uc.Repo.FindConversationByPair(ctx, lo, hi)
	if err == nil {
		return conv, nil
	}
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		return nil, err
	}

	conv, err = uc.Repo.CreateConversationWithParticipants(ctx, lo, hi)
	if err == nil {
		return conv, nil
	}
	if apperrors.Is(err, apperrors.CodeConflict) {
		return uc.Repo.FindConversationByPair(ctx, lo, hi)
	}
	return nil, err
}
