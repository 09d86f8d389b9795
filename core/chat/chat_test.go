package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/canvas/core/database"
	"github.com/adalundhe/canvas/core/providers"
)

var question = []providers.Message{{Role: providers.RoleUser, Content: "How do I center a div?"}}

func TestNewTranscript(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tr := NewTranscript("abc", "u1", question, "Use flexbox.", now)

	assert.Equal(t, "abc", tr.ID)
	assert.Equal(t, "/chat/abc", tr.Path)
	assert.Equal(t, "How do I center a div?", tr.Title)
	assert.Equal(t, int64(1_700_000_000_000), tr.CreatedAt)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, providers.Message{Role: providers.RoleAssistant, Content: "Use flexbox."}, tr.Messages[1])

	fresh := NewTranscript("", "u1", question, "x", now)
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, "/chat/"+fresh.ID, fresh.Path)
}

func TestTitleTruncatesRunes(t *testing.T) {
	long := strings.Repeat("あ", 150)
	title := Title([]providers.Message{{Role: providers.RoleUser, Content: long}})
	assert.Equal(t, 100, len([]rune(title)))
	assert.Equal(t, "", Title(nil))
}

func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	older := NewTranscript("c1", "u1", question, "first", time.UnixMilli(1000))
	newer := NewTranscript("c2", "u1", question, "second", time.UnixMilli(2000))
	other := NewTranscript("c3", "u2", question, "other", time.UnixMilli(3000))
	for _, tr := range []Transcript{older, newer, other} {
		require.NoError(t, store.Save(ctx, tr))
	}

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, older, got)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, "c1", list[1].ID)

	newer.Messages = append(newer.Messages, providers.Message{Role: providers.RoleUser, Content: "more"})
	require.NoError(t, store.Save(ctx, newer))
	got, err = store.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)

	list, err = store.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "", 0)
	defer store.Close()

	runStoreContract(t, store)

	assert.Equal(t, "u1", mr.HGet("chat:c1", "userId"))
	assert.Equal(t, "1000", mr.HGet("chat:c1", "createdAt"))
	members, err := mr.ZMembers("user:chat:u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat:c1", "chat:c2"}, members)
}

func TestRedisStoreSkipsDanglingIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "", 0)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, NewTranscript("c1", "u1", question, "a", time.UnixMilli(1))))
	_, err := mr.ZAdd("user:chat:u1", 5, "chat:gone")
	require.NoError(t, err)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
}

func TestSQLiteStore(t *testing.T) {
	pool, err := database.OpenMigrated(context.Background(), filepath.Join(t.TempDir(), "canvas.db"))
	require.NoError(t, err)
	defer pool.Close()

	runStoreContract(t, NewSQLiteStore(pool))
}
