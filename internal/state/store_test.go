package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readRecords(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestFileStore_Load(t *testing.T) {
	now := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("missing file returns empty history", func(t *testing.T) {
		store := NewFileStore(filepath.Join(tmpDir, "absent.json"), 30*24*time.Hour, fixedClock(now), nil)
		h, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, h.Len())
		assert.False(t, h.Contains("anything"))
	})

	t.Run("map format", func(t *testing.T) {
		path := filepath.Join(tmpDir, "map.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"a":"2024-12-01T10:00:00+00:00","b":"2024-12-02T10:00:00.123456+00:00"}`), 0644))

		h, err := NewFileStore(path, 30*24*time.Hour, fixedClock(now), nil).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Len())
		assert.True(t, h.Contains("a"))
		assert.True(t, h.Contains("b"))
	})

	t.Run("legacy list format is backfilled with load time", func(t *testing.T) {
		path := filepath.Join(tmpDir, "legacy.json")
		require.NoError(t, os.WriteFile(path, []byte(`["x","y"]`), 0644))

		store := NewFileStore(path, 30*24*time.Hour, fixedClock(now), nil)
		h, err := store.Load(ctx)
		require.NoError(t, err)
		assert.True(t, h.Contains("x"))
		assert.True(t, h.Contains("y"))

		require.NoError(t, store.Commit(ctx, h))
		records := readRecords(t, path)
		assert.Equal(t, now.Format(time.RFC3339Nano), records["x"])
		assert.Equal(t, now.Format(time.RFC3339Nano), records["y"])
	})

	t.Run("corrupted file starts empty and keeps a backup", func(t *testing.T) {
		path := filepath.Join(tmpDir, "corrupted.json")
		require.NoError(t, os.WriteFile(path, []byte("invalid json {"), 0644))

		h, err := NewFileStore(path, time.Hour, fixedClock(now), nil).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, h.Len())

		_, err = os.Stat(path + ".broken")
		assert.NoError(t, err)
	})
}

func TestFileStore_Commit(t *testing.T) {
	now := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("proposals become durable and old records are pruned", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		seed := map[string]string{
			"fresh":   now.Add(-24 * time.Hour).Format(time.RFC3339),
			"expired": now.Add(-31 * 24 * time.Hour).Format(time.RFC3339),
			"garbage": "not a time",
		}
		data, _ := json.Marshal(seed)
		require.NoError(t, os.WriteFile(path, data, 0644))

		store := NewFileStore(path, 30*24*time.Hour, fixedClock(now), nil)
		h, err := store.Load(ctx)
		require.NoError(t, err)

		h.Propose("new", now)
		assert.True(t, h.Contains("new"))
		assert.Equal(t, 1, h.Pending())

		require.NoError(t, store.Commit(ctx, h))

		records := readRecords(t, path)
		assert.Len(t, records, 2)
		assert.Contains(t, records, "fresh")
		assert.Contains(t, records, "new")
		assert.NotContains(t, records, "expired")
		assert.NotContains(t, records, "garbage")
	})

	t.Run("load then commit without proposals is byte identical", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		store := NewFileStore(path, 30*24*time.Hour, fixedClock(now), nil)

		h := NewHistory()
		h.Propose("b", now.Add(-time.Hour))
		h.Propose("a", now.Add(-2*time.Hour))
		require.NoError(t, store.Commit(ctx, h))

		before, err := os.ReadFile(path)
		require.NoError(t, err)

		reloaded, err := store.Load(ctx)
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, reloaded))

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("second commit is rejected", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "history.json"), time.Hour, fixedClock(now), nil)
		h := NewHistory()
		require.NoError(t, store.Commit(ctx, h))
		assert.ErrorIs(t, store.Commit(ctx, h), ErrAlreadyCommitted)
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		store := NewFileStore(path, time.Hour, fixedClock(now), nil)
		h := NewHistory()
		h.Propose("a", now)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, store.Commit(cancelled, h), context.Canceled)

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
		require.NoError(t, store.Commit(ctx, h))
		assert.Contains(t, readRecords(t, path), "a")
	})

	t.Run("creates directory and leaves no temp file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "state", "history.json")
		store := NewFileStore(path, time.Hour, fixedClock(now), nil)

		require.NoError(t, store.Commit(ctx, NewHistory()))

		_, err := os.Stat(path)
		assert.NoError(t, err)
		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})
}

func TestHistory_Stats(t *testing.T) {
	now := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "history.json")
	seed := map[string]string{
		"a": now.Add(-48 * time.Hour).Format(time.RFC3339),
		"b": now.Format(time.RFC3339),
	}
	data, _ := json.Marshal(seed)
	require.NoError(t, os.WriteFile(path, data, 0644))

	h, err := NewFileStore(path, time.Hour, fixedClock(now), nil).Load(context.Background())
	require.NoError(t, err)

	st := h.Stats()
	assert.Equal(t, 2, st.Records)
	assert.True(t, st.Oldest.Equal(now.Add(-48*time.Hour)))
	assert.True(t, st.Newest.Equal(now))
}
