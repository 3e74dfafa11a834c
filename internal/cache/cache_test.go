package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestKey(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10_000)

	assert.Equal(t, Key(data, "online"), Key(data, "online"))
	assert.NotEqual(t, Key(data, "online"), Key(data, "local"))
	assert.Regexp(t, `^[0-9a-f]+_online$`, Key(data, "online"))

	// Bytes in the middle of a large payload are not sampled.
	changed := bytes.Clone(data)
	changed[5000] = 0x00
	assert.Equal(t, Key(data, "online"), Key(changed, "online"))

	changed[0] = 0x00
	assert.NotEqual(t, Key(data, "online"), Key(changed, "online"))

	assert.NotEqual(t, Key([]byte("a"), "online"), Key([]byte("b"), "online"))
}

func TestPutGet(t *testing.T) {
	c, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	_, ok := c.Get("missing_online")
	assert.False(t, ok)

	require.NoError(t, c.Put("abc_online", "REPUBLIC OF THE PHILIPPINES"))
	got, ok := c.Get("abc_online")
	require.True(t, ok)
	assert.Equal(t, "REPUBLIC OF THE PHILIPPINES", got)

	// Idempotent: same key returns the same text every time.
	again, ok := c.Get("abc_online")
	require.True(t, ok)
	assert.Equal(t, got, again)

	_, err = os.Stat(filepath.Join(c.Dir(), "abc_online.txt"))
	require.NoError(t, err)
}

func TestTrimKeepsMostRecent(t *testing.T) {
	const bound = 15
	c, err := New(t.TempDir(), bound, WithClock(tickingClock()))
	require.NoError(t, err)

	for i := range 20 {
		require.NoError(t, c.Put(fmt.Sprintf("k%02d_local", i), "text"))
	}

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, bound, stats.Entries)
	assert.Equal(t, int64(bound*len("text")), stats.Bytes)

	for i := range 20 {
		_, ok := c.Get(fmt.Sprintf("k%02d_local", i))
		assert.Equal(t, i >= 5, ok, "entry %d", i)
	}
}

func TestTrimIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600))

	c, err := New(dir, 1, WithClock(tickingClock()))
	require.NoError(t, err)
	require.NoError(t, c.Put("a_online", "1"))
	require.NoError(t, c.Put("b_online", "2"))

	_, err = os.Stat(filepath.Join(dir, "notes.md"))
	require.NoError(t, err)
	_, ok := c.Get("b_online")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c, err := New(t.TempDir(), 5)
	require.NoError(t, err)
	require.NoError(t, c.Put("a_online", "1"))
	require.NoError(t, c.Put("b_local", "2"))

	n, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestPut_WriteFailed(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 5)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = c.Put("a_online", "1")
	require.ErrorIs(t, err, ErrWriteFailed)
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New(t.TempDir(), 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d_online", i%3)
			_ = c.Put(key, "value")
			if got, ok := c.Get(key); ok {
				assert.Equal(t, "value", got)
			}
		}(i)
	}
	wg.Wait()

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.Entries, 4)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("", 5)
	require.Error(t, err)
}
