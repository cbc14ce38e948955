package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	queueport "shorewatch/internal/infrastructure/queue/port"
	"shorewatch/internal/infrastructure/relay"
	"shorewatch/internal/pkg/messaging/application/task"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageInput carries what the sender supplied. RecipientID addresses
// the peer; the conversation is resolved (or created) from the pair.
type SendMessageInput struct {
	SenderID    int64
	RecipientID int64
	Content     string
	MessageType messaging.MessageType
}

// SendMessageResult is the stored message plus the conversation it landed in,
// which the sender may not have known beforehand.
type SendMessageResult struct {
	Message        *messaging.Message
	ConversationID int64
}

// SendMessageUseCase persists a message, then broadcasts it to live
// subscribers and queues a recipient notification. Only persistence failures
// fail the send; everything after the append is best-effort.
type SendMessageUseCase struct {
	Repo   repository.MessagingRepository
	Opener *StartConversationUseCase
	Relay  relay.Relay
	Queue  queueport.Client
	Cache  cacheport.Cache
	Log    *zap.Logger

	NotifyQueue string
}

func NewSendMessageUseCase(
	repo repository.MessagingRepository,
	opener *StartConversationUseCase,
	rl relay.Relay,
	queue queueport.Client,
	cache cacheport.Cache,
	log *zap.Logger,
	notifyQueue string,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		Repo:        repo,
		Opener:      opener,
		Relay:       rl,
		Queue:       queue,
		Cache:       cache,
		Log:         log,
		NotifyQueue: notifyQueue,
	}
}

// previewMaxBytes bounds the notification excerpt carried in the queue
// payload.
const previewMaxBytes = 120

// UnreadCacheKey is the cache slot for a reader's unread count in one
// conversation. Send invalidates the recipient's slot, mark-read the reader's.
func UnreadCacheKey(conversationID, readerID int64) string {
	return fmt.Sprintf("unread:%d:%d", conversationID, readerID)
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	conv, err := uc.Opener.Execute(ctx, StartConversationInput{
		CallerID:    in.SenderID,
		RecipientID: in.RecipientID,
	})
	if err != nil {
		return nil, err
	}

	msg, err := messaging.NewMessage(conv.ID, in.SenderID, in.Content, in.MessageType)
	if err != nil {
		return nil, err
	}

	stored, err := uc.Repo.AppendMessage(ctx, *msg)
	if err != nil {
		return nil, err
	}

	// The message is durable from here on; broadcast and notification
	// failures degrade liveness, not correctness.
	uc.broadcast(ctx, stored)
	uc.enqueueNotify(ctx, stored, in.RecipientID)

	if _, err := uc.Cache.Del(ctx, UnreadCacheKey(conv.ID, in.RecipientID)); err != nil {
		uc.Log.Warn("unread cache invalidation failed",
			zap.Int64("conversation_id", conv.ID), zap.Error(err))
	}

	return &SendMessageResult{Message: stored, ConversationID: conv.ID}, nil
}

func (uc *SendMessageUseCase) broadcast(ctx context.Context, m *messaging.Message) {
	body, err := json.Marshal(m)
	if err != nil {
		uc.Log.Error("marshal message for broadcast", zap.Error(err))
		return
	}
	env := relay.Envelope{
		Type:           relay.EnvelopeNewMessage,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Message:        body,
		Timestamp:      time.Now().UTC(),
	}
	if err := uc.Relay.Publish(ctx, env); err != nil {
		uc.Log.Warn("message broadcast failed, recipients fall back to polling",
			zap.Int64("conversation_id", m.ConversationID),
			zap.Int64("message_id", m.ID),
			zap.Error(err))
	}
}

func (uc *SendMessageUseCase) enqueueNotify(ctx context.Context, m *messaging.Message, recipientID int64) {
	preview := m.Content
	if len(preview) > previewMaxBytes {
		cut := previewMaxBytes
		// Back off to a rune boundary so the payload stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	t, err := task.NewNotifyTask(task.NotifyRecipientPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    recipientID,
		Preview:        preview,
	})
	if err != nil {
		uc.Log.Error("build notify task", zap.Error(err))
		return
	}
	if _, err := uc.Queue.Enqueue(ctx, t, queueport.EnqueueOption{
		Queue:    uc.NotifyQueue,
		MaxRetry: 3,
	}); err != nil {
		uc.Log.Warn("enqueue recipient notification failed",
			zap.Int64("message_id", m.ID), zap.Error(err))
	}
}
