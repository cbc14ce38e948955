package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorewatch/pkg/apperrors"
)

func TestCanonicalPair(t *testing.T) {
	t.Run("orders both directions the same", func(t *testing.T) {
		lo1, hi1, err := CanonicalPair(7, 3)
		require.NoError(t, err)
		lo2, hi2, err := CanonicalPair(3, 7)
		require.NoError(t, err)

		assert.Equal(t, lo1, lo2)
		assert.Equal(t, hi1, hi2)
		assert.Equal(t, int64(3), lo1)
		assert.Equal(t, int64(7), hi1)
	})

	t.Run("rejects self pair", func(t *testing.T) {
		_, _, err := CanonicalPair(5, 5)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		_, _, err := CanonicalPair(0, 5)
		assert.Error(t, err)
		_, _, err = CanonicalPair(5, -1)
		assert.Error(t, err)
	})
}

func TestConversationPeer(t *testing.T) {
	c := Conversation{ID: 1, PeerLo: 3, PeerHi: 7}

	assert.Equal(t, int64(7), c.PeerOf(3))
	assert.Equal(t, int64(3), c.PeerOf(7))

	assert.True(t, c.Involves(3))
	assert.True(t, c.Involves(7))
	assert.False(t, c.Involves(9))
}
