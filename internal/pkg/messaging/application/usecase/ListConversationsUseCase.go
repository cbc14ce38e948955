package usecase

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
)

// unreadCacheTTL bounds staleness of cached unread counts between
// invalidations.
const unreadCacheTTL = time.Minute

// ListConversationsUseCase builds the caller's inbox and warms the unread
// cache so cheap per-conversation probes do not hit the database.
type ListConversationsUseCase struct {
	Repo  repository.MessagingRepository
	Cache cacheport.Cache
	Log   *zap.Logger
}

func NewListConversationsUseCase(repo repository.MessagingRepository, cache cacheport.Cache, log *zap.Logger) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo, Cache: cache, Log: log}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, callerID int64) ([]repository.ConversationSummary, error) {
	summaries, err := uc.Repo.ListConversationsFor(ctx, callerID)
	if err != nil {
		return nil, err
	}

	for _, s := range summaries {
		key := UnreadCacheKey(s.Conversation.ID, callerID)
		if err := uc.Cache.Set(ctx, key, strconv.Itoa(s.Unread), unreadCacheTTL); err != nil {
			uc.Log.Warn("unread cache warm failed", zap.String("key", key), zap.Error(err))
			break
		}
	}
	return summaries, nil
}
