package task

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	queueport "shorewatch/internal/infrastructure/queue/port"
	"shorewatch/pkg/apperrors"
)

// TypeNotifyRecipient is the queue task type for recipient notifications.
const TypeNotifyRecipient = "messaging:notify"

// NotifyRecipientPayload is the queue payload. Preview is a short excerpt so
// the worker does not need a message-store round trip for push text.
type NotifyRecipientPayload struct {
	MessageID      int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	RecipientID    int64  `json:"recipient_id"`
	Preview        string `json:"preview"`
}

// Notifier delivers an out-of-band notification to a user. Implementations
// must be idempotent because queue retries may re-deliver a payload.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, p NotifyRecipientPayload) error
}

// NewNotifyTask shapes an enqueueable task from a payload.
func NewNotifyTask(p NotifyRecipientPayload) (queueport.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return queueport.Task{}, apperrors.Wrap(apperrors.CodeInternal, "marshal notify payload", err)
	}
	return queueport.Task{Type: TypeNotifyRecipient, Payload: b}, nil
}

// RegisterNotifyRecipient wires the handler into the worker server.
func RegisterNotifyRecipient(srv queueport.Server, n Notifier, log *zap.Logger) {
	srv.Register(TypeNotifyRecipient, func(ctx context.Context, t queueport.Task) error {
		var p NotifyRecipientPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payloads never heal; dropping beats retry loops.
			log.Error("drop malformed notify payload", zap.Error(err))
			return nil
		}
		return n.NotifyNewMessage(ctx, p)
	})
}

// LogNotifier is the default Notifier: it records the notification instead of
// delivering one. Push and email providers slot in behind the same interface.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) NotifyNewMessage(_ context.Context, p NotifyRecipientPayload) error {
	n.Log.Info("notify recipient of new message",
		zap.Int64("recipient_id", p.RecipientID),
		zap.Int64("conversation_id", p.ConversationID),
		zap.Int64("message_id", p.MessageID),
	)
	return nil
}
