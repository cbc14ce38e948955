package usecase

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
)

// CountUnreadUseCase answers "how many unread here" with a cache in front of
// the store. Used on websocket joins so every attach does not cost a count
// query.
type CountUnreadUseCase struct {
	Repo  repository.MessagingRepository
	Cache cacheport.Cache
	Log   *zap.Logger
}

func NewCountUnreadUseCase(repo repository.MessagingRepository, cache cacheport.Cache, log *zap.Logger) *CountUnreadUseCase {
	return &CountUnreadUseCase{Repo: repo, Cache: cache, Log: log}
}

func (uc *CountUnreadUseCase) Execute(ctx context.Context, conversationID, readerID int64) (int, error) {
	ok, err := uc.Repo.IsParticipant(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, messaging.ErrNotParticipant
	}

	key := UnreadCacheKey(conversationID, readerID)
	if v, err := uc.Cache.Get(ctx, key); err == nil {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			return n, nil
		}
	} else if !errors.Is(err, cacheport.ErrMiss) {
		uc.Log.Warn("unread cache read failed", zap.String("key", key), zap.Error(err))
	}

	n, err := uc.Repo.CountUnread(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	if err := uc.Cache.Set(ctx, key, strconv.Itoa(n), unreadCacheTTL); err != nil {
		uc.Log.Warn("unread cache write failed", zap.String("key", key), zap.Error(err))
	}
	return n, nil
}
