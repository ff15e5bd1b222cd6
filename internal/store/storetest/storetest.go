// Package storetest holds behaviour tests shared by every store.Store implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireboard-server/internal/store"
)

// Run exercises st against the store.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("guest", func(t *testing.T) { testGuest(t, newStore(t)) })
	t.Run("board round trip", func(t *testing.T) { testBoardRoundTrip(t, newStore(t)) })
	t.Run("board overwrite keeps owner", func(t *testing.T) { testBoardOverwrite(t, newStore(t)) })
	t.Run("list boards", func(t *testing.T) { testListBoards(t, newStore(t)) })
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()

	u, err := st.CreateUser(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsGuest)

	byEmail, err := st.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := st.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	_, err = st.CreateUser(ctx, "alice@example.com", "other")
	assert.Error(t, err, "emails are unique")

	_, err = st.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testGuest(t *testing.T, st store.Store) {
	ctx := context.Background()

	g, err := st.CreateGuestUser(ctx, "0123456789abcdef")
	require.NoError(t, err)
	assert.True(t, g.IsGuest)
	assert.Equal(t, "0123456789abcdef", g.SessionID)
	assert.Equal(t, "guest-01234567@guest.local", g.Email)

	_, err = st.GetUserByEmail(ctx, g.Email)
	assert.ErrorIs(t, err, store.ErrNotFound, "guests cannot log in by email")
}

func testBoardRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.LoadBoard(ctx, "b1")
	require.ErrorIs(t, err, store.ErrNotFound)

	payload := []byte(`[{"id":"e1","tool":"pen","points":[1,2]}]`)
	require.NoError(t, st.SaveBoard(ctx, "b1", "u1", payload))

	b, err := st.LoadBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, "u1", b.OwnerID)
	assert.JSONEq(t, string(payload), string(b.Elements))
	assert.False(t, b.CreatedAt.IsZero())
	assert.False(t, b.UpdatedAt.IsZero())
}

func testBoardOverwrite(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.SaveBoard(ctx, "b1", "u1", []byte(`[{"id":"a"}]`)))
	require.NoError(t, st.SaveBoard(ctx, "b1", "u2", []byte(`[]`)))

	b, err := st.LoadBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "u1", b.OwnerID)
	assert.JSONEq(t, `[]`, string(b.Elements))
	assert.False(t, b.UpdatedAt.Before(b.CreatedAt))
}

func testListBoards(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.SaveBoard(ctx, "a", "u1", []byte(`[]`)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.SaveBoard(ctx, "b", "u1", []byte(`[]`)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.SaveBoard(ctx, "c", "u2", []byte(`[]`)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.SaveBoard(ctx, "a", "u1", []byte(`[{"id":"x"}]`)))

	boards, err := st.ListBoards(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, "a", boards[0].ID, "most recently updated first")
	assert.Equal(t, "b", boards[1].ID)
	assert.Empty(t, boards[0].Elements, "listing omits element payloads")

	none, err := st.ListBoards(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
