package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayReturnsOutstandingRequests(t *testing.T) {
	cfg := Config{Dir: t.TempDir()}
	jnl, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, jnl.Append("c-1", []byte(`{"type":"create_order"}`)))
	require.NoError(t, jnl.Append("c-2", []byte(`{"type":"close_order"}`)))
	require.NoError(t, jnl.Retire("c-1"))
	require.NoError(t, jnl.Close())

	entries, err := Replay(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c-2", entries[0].CorrelationID)
	assert.Equal(t, []byte(`{"type":"close_order"}`), entries[0].Payload)
}

func TestReplayMissingFile(t *testing.T) {
	entries, err := Replay(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaySkipsTornLine(t *testing.T) {
	cfg := Config{Dir: t.TempDir()}
	jnl, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, jnl.Append("c-1", []byte("payload")))
	require.NoError(t, jnl.Close())

	// Simulate a crash mid-write: a truncated record at the tail.
	f, err := os.OpenFile(filepath.Join(cfg.Dir, "journal.log"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"op":"send","corr_id":"c-2`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := Replay(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c-1", entries[0].CorrelationID)
}

func TestAppendAfterClose(t *testing.T) {
	jnl, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, jnl.Close())

	assert.ErrorIs(t, jnl.Append("c-1", nil), ErrClosed)
	assert.NoError(t, jnl.Close(), "closing twice is harmless")
}

func TestSyncOnAppend(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), SyncOnAppend: true}
	jnl, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, jnl.Append("c-1", []byte("x")))
	require.NoError(t, jnl.Close())

	entries, err := Replay(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
