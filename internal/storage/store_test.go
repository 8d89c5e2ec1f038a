package storage

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// exerciseStore runs the contract every backend must honour.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "theme", "light"))
	got, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	require.Equal(t, "light", got)

	require.NoError(t, s.Set(ctx, "theme", "dark"))
	got, err = s.Get(ctx, "theme")
	require.NoError(t, err)
	require.Equal(t, "dark", got)

	require.NoError(t, s.Delete(ctx, "theme"))
	_, err = s.Get(ctx, "theme")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "never-written"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(nil))
}

func TestMemoryStoreSeedIsCopied(t *testing.T) {
	seed := map[string]string{"chats": "{}"}
	s := NewMemoryStore(seed)
	seed["chats"] = "mutated"

	got, err := s.Get(context.Background(), "chats")
	require.NoError(t, err)
	require.Equal(t, "{}", got)
	require.ElementsMatch(t, []string{"chats"}, s.Keys())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state", "chats.json"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	ctx := context.Background()

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "chats", `{"a":{}}`))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, "chats")
	require.NoError(t, err)
	require.Equal(t, `{"a":{}}`, got)
}

func TestFileStoreCorruptDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "chats")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "autoSave", "false"))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.Get(ctx, "autoSave")
	require.NoError(t, err)
	require.Equal(t, "false", got)
}

func TestSQLiteStoreMissIsSilent(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})

	for _, key := range []string{"theme", "autoSave", "draft_s01"} {
		_, err := s.Get(context.Background(), key)
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Empty(t, buf.String())
}

func TestCloseIgnoresStoresWithoutResources(t *testing.T) {
	require.NoError(t, Close(NewMemoryStore(nil)))
}
