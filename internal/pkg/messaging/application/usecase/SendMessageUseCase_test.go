package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shorewatch/internal/pkg/messaging/application/task"
	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/pkg/apperrors"
)

func newSendFixture(repo *fakeRepo) (*SendMessageUseCase, *fakeRelay, *fakeQueue, *fakeCache) {
	rl := &fakeRelay{}
	q := &fakeQueue{}
	c := newFakeCache()
	opener := NewStartConversationUseCase(repo, newFakeDirectory(3, 7))
	uc := NewSendMessageUseCase(repo, opener, rl, q, c, zap.NewNop(), "messaging")
	return uc, rl, q, c
}

func TestSendMessageStoresBroadcastsAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	uc, rl, q, _ := newSendFixture(repo)

	res, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "first contact",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	assert.NotZero(t, res.Message.ID)
	assert.Equal(t, res.ConversationID, res.Message.ConversationID)

	// Broadcast carries the stored copy, not the raw input.
	require.Equal(t, 1, rl.count())
	env := rl.published[0]
	assert.Equal(t, res.ConversationID, env.ConversationID)
	assert.Equal(t, int64(7), env.SenderID)
	var echoed messaging.Message
	require.NoError(t, json.Unmarshal(env.Message, &echoed))
	assert.Equal(t, res.Message.ID, echoed.ID)

	// A recipient notification was queued with the right addressee.
	require.Len(t, q.tasks, 1)
	assert.Equal(t, task.TypeNotifyRecipient, q.tasks[0].Type)
	var p task.NotifyRecipientPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &p))
	assert.Equal(t, int64(3), p.RecipientID)
	assert.Equal(t, res.Message.ID, p.MessageID)
	require.Len(t, q.opts, 1)
	assert.Equal(t, "messaging", q.opts[0].Queue)
}

func TestSendMessageSurvivesRelayFailure(t *testing.T) {
	repo := newFakeRepo()
	uc, rl, _, _ := newSendFixture(repo)
	rl.err = errors.New("redis down")

	res, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "still delivered",
	})
	require.NoError(t, err)
	assert.NotZero(t, res.Message.ID)
	assert.Len(t, repo.messages, 1)
}

func TestSendMessageSurvivesQueueFailure(t *testing.T) {
	repo := newFakeRepo()
	uc, _, q, _ := newSendFixture(repo)
	q.err = errors.New("queue down")

	_, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "still delivered",
	})
	require.NoError(t, err)
}

func TestSendMessageInvalidatesRecipientUnread(t *testing.T) {
	repo := newFakeRepo()
	uc, _, _, cache := newSendFixture(repo)

	res, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "hi",
	})
	require.NoError(t, err)
	assert.Contains(t, cache.deleted, UnreadCacheKey(res.ConversationID, 3))
}

func TestSendMessageAppendFailureFailsTheSend(t *testing.T) {
	repo := newFakeRepo()
	repo.failAppend = apperrors.Unavailable("insert failed", errors.New("io"))
	uc, rl, q, _ := newSendFixture(repo)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "doomed",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))

	// Nothing durable, nothing broadcast, nothing queued.
	assert.Zero(t, rl.count())
	assert.Empty(t, q.tasks)
}

func TestSendMessagePreviewKeepsValidUTF8(t *testing.T) {
	repo := newFakeRepo()
	uc, _, q, _ := newSendFixture(repo)

	// "é" is 2 bytes, so byte 120 falls mid-rune.
	content := strings.Repeat("é", 100)
	_, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: content,
	})
	require.NoError(t, err)

	require.Len(t, q.tasks, 1)
	var p task.NotifyRecipientPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &p))
	assert.True(t, utf8.ValidString(p.Preview))
	assert.LessOrEqual(t, len(p.Preview), 120)
	assert.True(t, strings.HasPrefix(content, p.Preview))
}

func TestSendMessageValidatesContent(t *testing.T) {
	repo := newFakeRepo()
	uc, _, _, _ := newSendFixture(repo)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		SenderID: 7, RecipientID: 3, Content: "   ",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}
