package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Authenticated())

	require.NoError(t, s.SetToken("abc"))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "abc", s.Token())

	require.NoError(t, s.Clear())
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStore(filepath.Join(dir, "arena"))

	// Missing file is an empty credential, not an error.
	tok, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, store.Save("tok-1"))
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// The credential lives under the fixed name.
	_, err = os.Stat(filepath.Join(dir, "arena", "access_token"))
	require.NoError(t, err)

	require.NoError(t, store.Clear())
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestNewStoredSession_LoadsExisting(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStore(dir)
	require.NoError(t, store.Save("persisted"))

	s, err := NewStoredSession(store)
	require.NoError(t, err)
	assert.Equal(t, "persisted", s.Token())

	// Logout removes the file too.
	require.NoError(t, s.Clear())
	reloaded, err := NewStoredSession(store)
	require.NoError(t, err)
	assert.False(t, reloaded.Authenticated())
}
