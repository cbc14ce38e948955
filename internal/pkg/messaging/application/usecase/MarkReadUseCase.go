package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

// MarkReadInput identifies which conversation the reader just caught up on.
type MarkReadInput struct {
	ConversationID int64
	ReaderID       int64
}

// MarkReadUseCase stamps the peer's unread messages and drops the reader's
// cached unread count. Idempotent: a second call finds nothing to update.
type MarkReadUseCase struct {
	Repo  repository.MessagingRepository
	Cache cacheport.Cache
	Log   *zap.Logger
}

func NewMarkReadUseCase(repo repository.MessagingRepository, cache cacheport.Cache, log *zap.Logger) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo, Cache: cache, Log: log}
}

// Execute returns how many messages flipped to read.
func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (int64, error) {
	if in.ConversationID <= 0 {
		return 0, apperrors.InvalidArg("conversation_id is required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.ReaderID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, messaging.ErrNotParticipant
	}

	marked, err := uc.Repo.MarkRead(ctx, in.ConversationID, in.ReaderID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	key := UnreadCacheKey(in.ConversationID, in.ReaderID)
	if _, err := uc.Cache.Del(ctx, key); err != nil {
		uc.Log.Warn("unread cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
	return marked, nil
}
