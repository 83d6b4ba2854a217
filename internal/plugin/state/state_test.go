package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	loadErr error
	saveErr error
	saved   [][]string
}

func (s *failingStore) Load() ([]string, error) { return nil, s.loadErr }
func (s *failingStore) Save(ids []string) error {
	s.saved = append(s.saved, ids)
	return s.saveErr
}
func (s *failingStore) Close() error { return nil }

func TestManagerDefaultsEnabled(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.IsEnabled("com.example.unknown"))
	assert.Empty(t, m.Disabled())
}

func TestManagerSetEnabled(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)

	require.NoError(t, m.SetEnabled("com.example.b", false))
	require.NoError(t, m.SetEnabled("com.example.a", false))
	assert.False(t, m.IsEnabled("com.example.a"))
	assert.Equal(t, []string{"com.example.a", "com.example.b"}, m.Disabled())

	persisted, _ := store.Load()
	assert.Equal(t, []string{"com.example.a", "com.example.b"}, persisted)

	require.NoError(t, m.SetEnabled("com.example.a", true))
	assert.True(t, m.IsEnabled("com.example.a"))
	persisted, _ = store.Load()
	assert.Equal(t, []string{"com.example.b"}, persisted)
}

func TestManagerUnchangedSkipsSave(t *testing.T) {
	store := &failingStore{}
	m := NewManager(store)

	require.NoError(t, m.SetEnabled("x", true))
	assert.Empty(t, store.saved)
}

func TestManagerLoadFailureStartsEmpty(t *testing.T) {
	m := NewManager(&failingStore{loadErr: errors.New("corrupt")})
	assert.True(t, m.IsEnabled("x"))
}

func TestManagerSaveFailureKeepsMemory(t *testing.T) {
	m := NewManager(&failingStore{saveErr: errors.New("disk full")})

	err := m.SetEnabled("x", false)
	require.Error(t, err)
	assert.False(t, m.IsEnabled("x"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plugins.yaml")
	store := NewFileStore(path)

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)

	m := NewManager(store)
	require.NoError(t, m.SetEnabled("com.example.foo", false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "com.example.foo")

	reopened := NewManager(NewFileStore(path))
	assert.False(t, reopened.IsEnabled("com.example.foo"))
	assert.True(t, reopened.IsEnabled("com.example.bar"))
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disabled: [unclosed"), 0o644))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)

	m := NewManager(NewFileStore(path))
	assert.True(t, m.IsEnabled("anything"))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	m := NewManager(store)
	require.NoError(t, m.SetEnabled("com.example.b", false))
	require.NoError(t, m.SetEnabled("com.example.a", false))
	require.NoError(t, m.SetEnabled("com.example.b", true))
	require.NoError(t, m.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.a"}, ids)

	require.NoError(t, reopened.Save(nil))
	ids, err = reopened.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
