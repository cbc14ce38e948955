package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/pkg/apperrors"
)

func seedMessages(t *testing.T, repo *fakeRepo, conversationID, senderID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m, err := messaging.NewMessage(conversationID, senderID, "msg", messaging.MessageTypeText)
		require.NoError(t, err)
		_, err = repo.AppendMessage(context.Background(), *m)
		require.NoError(t, err)
	}
}

func TestListMessagesEnforcesMembership(t *testing.T) {
	repo := newFakeRepo()
	conv := repo.seedConversation(3, 7)
	uc := NewListMessagesUseCase(repo, 50)

	_, err := uc.Execute(context.Background(), ListMessagesInput{
		ConversationID: conv.ID, CallerID: 99,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}

func TestListMessagesPagesAscending(t *testing.T) {
	repo := newFakeRepo()
	conv := repo.seedConversation(3, 7)
	seedMessages(t, repo, conv.ID, 3, 5)
	uc := NewListMessagesUseCase(repo, 50)

	out, err := uc.Execute(context.Background(), ListMessagesInput{
		ConversationID: conv.ID, CallerID: 7, Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)
	assert.True(t, out.HasMore)
	assert.Equal(t, int64(1), out.Messages[0].ID)
	assert.Equal(t, int64(3), out.Messages[2].ID)

	rest, err := uc.Execute(context.Background(), ListMessagesInput{
		ConversationID: conv.ID, CallerID: 7, Limit: 3, Offset: 3,
	})
	require.NoError(t, err)
	require.Len(t, rest.Messages, 2)
	assert.False(t, rest.HasMore)
}

func TestListMessagesAfterCursor(t *testing.T) {
	repo := newFakeRepo()
	conv := repo.seedConversation(3, 7)
	seedMessages(t, repo, conv.ID, 3, 5)
	uc := NewListMessagesUseCase(repo, 50)

	out, err := uc.Execute(context.Background(), ListMessagesInput{
		ConversationID: conv.ID, CallerID: 7, AfterID: 3,
	})
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, int64(4), out.Messages[0].ID)
	assert.Equal(t, int64(5), out.Messages[1].ID)
}

func TestListMessagesDefaultsLimit(t *testing.T) {
	repo := newFakeRepo()
	conv := repo.seedConversation(3, 7)
	seedMessages(t, repo, conv.ID, 3, 2)
	uc := NewListMessagesUseCase(repo, 50)

	out, err := uc.Execute(context.Background(), ListMessagesInput{
		ConversationID: conv.ID, CallerID: 3, Limit: -5,
	})
	require.NoError(t, err)
	assert.Len(t, out.Messages, 2)
}

func TestListMessagesRequiresConversationID(t *testing.T) {
	uc := NewListMessagesUseCase(newFakeRepo(), 50)

	_, err := uc.Execute(context.Background(), ListMessagesInput{CallerID: 7})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}
