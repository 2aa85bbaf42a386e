package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, ttl time.Duration) *SQLiteLedger {
	t.Helper()
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "sent_alerts.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSQLiteMarkThenSeen(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t, 0)

	seen, err := l.Seen(ctx, []string{"Megastar_electronics"})
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, l.Mark(ctx, []string{"Megastar_electronics", "Europa_groceries"}))
	require.NoError(t, l.Mark(ctx, []string{"Europa_groceries"}))

	seen, err = l.Seen(ctx, []string{"Megastar_electronics", "Europa_groceries", "Star_toys"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Megastar_electronics": true, "Europa_groceries": true}, seen)
}

func TestSQLiteEmptyKeys(t *testing.T) {
	l := openTemp(t, 0)

	seen, err := l.Seen(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, seen)
	assert.NoError(t, l.Mark(context.Background(), nil))
}

func TestSQLiteTTLExpiresEntries(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Mark(ctx, []string{"Star_toys"}))

	seen, err := l.Seen(ctx, []string{"Star_toys"})
	require.NoError(t, err)
	assert.True(t, seen["Star_toys"])

	now = now.Add(2 * time.Hour)
	seen, err = l.Seen(ctx, []string{"Star_toys"})
	require.NoError(t, err)
	assert.False(t, seen["Star_toys"])
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := OpenSQLite(path, 0)
	require.NoError(t, err)
	require.NoError(t, l.Mark(ctx, []string{"Finlandia_furniture"}))
	require.NoError(t, l.Close())

	l, err = OpenSQLite(path, 0)
	require.NoError(t, err)
	defer l.Close()

	seen, err := l.Seen(ctx, []string{"Finlandia_furniture"})
	require.NoError(t, err)
	assert.True(t, seen["Finlandia_furniture"])
}

func TestOpenSelectsBackend(t *testing.T) {
	l, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "l.db"), "", 0)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteLedger{}, l)
	require.NoError(t, l.Close())

	_, err = Open(context.Background(), "etcd", "", "", 0)
	assert.Error(t, err)
}
