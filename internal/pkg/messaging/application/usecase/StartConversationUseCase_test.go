package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorewatch/pkg/apperrors"
)

func TestStartConversationCreatesOnFirstContact(t *testing.T) {
	repo := newFakeRepo()
	uc := NewStartConversationUseCase(repo, newFakeDirectory(3, 7))

	conv, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 7, RecipientID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), conv.PeerLo)
	assert.Equal(t, int64(7), conv.PeerHi)
	assert.Equal(t, 1, repo.createCalls)
}

func TestStartConversationReturnsExisting(t *testing.T) {
	repo := newFakeRepo()
	existing := repo.seedConversation(3, 7)
	uc := NewStartConversationUseCase(repo, newFakeDirectory(3, 7))

	// Both directions resolve to the same conversation.
	a, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 3, RecipientID: 7})
	require.NoError(t, err)
	b, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 7, RecipientID: 3})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, a.ID)
	assert.Equal(t, existing.ID, b.ID)
	assert.Equal(t, 0, repo.createCalls)
}

func TestStartConversationLosingRaceRereads(t *testing.T) {
	repo := newFakeRepo()
	repo.conflictCreates = 1
	uc := NewStartConversationUseCase(repo, newFakeDirectory(3, 7))

	conv, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 7, RecipientID: 3})
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, 1, repo.createCalls)
}

func TestStartConversationUnknownRecipient(t *testing.T) {
	repo := newFakeRepo()
	uc := NewStartConversationUseCase(repo, newFakeDirectory(7))

	_, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 7, RecipientID: 99})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestStartConversationRejectsSelf(t *testing.T) {
	repo := newFakeRepo()
	uc := NewStartConversationUseCase(repo, newFakeDirectory(7))

	_, err := uc.Execute(context.Background(), StartConversationInput{CallerID: 7, RecipientID: 7})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}
