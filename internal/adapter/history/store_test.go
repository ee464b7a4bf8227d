package history

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "history.jsonl")
	return NewStore(path, logger.NewPlainStyledLogger(slog.New(slog.DiscardHandler)))
}

func entry(ts time.Time, status domain.ExecutionStatus, code int) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		Timestamp: ts,
		Command:   "print(1)",
		Mode:      domain.ModeKernel,
		Status:    status,
		ErrorCode: code,
		Runtime:   domain.RuntimeInfo{Label: "gpu-1", Accelerator: "T4"},
	}
}

func TestAppendAndQuery(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.Append(entry(now.Add(-2*time.Minute), domain.ExecutionOK, 0)))
	require.NoError(t, store.Append(entry(now.Add(-time.Minute), domain.ExecutionError, domain.ErrorCodeRuntime)))
	require.NoError(t, store.Append(entry(now, domain.ExecutionOK, 0)))

	entries, err := store.Query(domain.HistoryFilter{Limit: domain.DefaultHistoryLimit})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// newest first
	assert.Equal(t, now, entries[0].Timestamp)
	assert.Equal(t, now.Add(-2*time.Minute), entries[2].Timestamp)
}

func TestAppend_DoesNotMutateCallerEntry(t *testing.T) {
	store := testStore(t)

	loc := time.FixedZone("AEST", 10*3600)
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, loc)
	in := entry(ts, domain.ExecutionError, domain.ErrorCodeSyntax)
	require.NoError(t, store.Append(in))

	assert.True(t, in.Timestamp.Equal(ts))
	assert.Equal(t, loc, in.Timestamp.Location(), "caller's timestamp keeps its zone")
	assert.Empty(t, in.Category, "category is derived on disk, not on the caller's entry")

	got, err := store.Query(domain.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.UTC, got[0].Timestamp.Location())
	assert.Equal(t, domain.CategorySyntax, got[0].Category)
}

func TestAppend_DerivesCategory(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionError, domain.ErrorCodeImport)))

	entries, err := store.Query(domain.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CategoryImport, entries[0].Category)
}

func TestAppend_OneLinePerEntry(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))

	data, err := os.ReadFile(store.path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
}

func TestQuery_Filters(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Append(entry(now.Add(-3*time.Hour), domain.ExecutionOK, 0)))
	require.NoError(t, store.Append(entry(now.Add(-2*time.Hour), domain.ExecutionError, domain.ErrorCodeSyntax)))
	require.NoError(t, store.Append(entry(now.Add(-time.Hour), domain.ExecutionError, domain.ErrorCodeImport)))
	require.NoError(t, store.Append(entry(now, domain.ExecutionAbort, domain.ErrorCodeTimeout)))

	byStatus, err := store.Query(domain.HistoryFilter{Status: domain.ExecutionError, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	byCategory, err := store.Query(domain.HistoryFilter{Category: domain.CategorySyntax, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, domain.ErrorCodeSyntax, byCategory[0].ErrorCode)

	since, err := store.Query(domain.HistoryFilter{Since: now.Add(-90 * time.Minute), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	window, err := store.Query(domain.HistoryFilter{
		Since: now.Add(-150 * time.Minute),
		Until: now.Add(-30 * time.Minute),
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, window, 2)
}

func TestQuery_LimitCapsNewest(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(entry(now.Add(time.Duration(i)*time.Minute), domain.ExecutionOK, 0)))
	}

	entries, err := store.Query(domain.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, now.Add(4*time.Minute).Truncate(time.Second), entries[0].Timestamp.Truncate(time.Second))
}

func TestQuery_ZeroLimitReturnsNothing(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))

	entries, err := store.Query(domain.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQuery_MissingFileIsEmpty(t *testing.T) {
	store := testStore(t)
	entries, err := store.Query(domain.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQuery_SkipsCorruptLines(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))

	f, err := os.OpenFile(store.path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))

	entries, err := store.Query(domain.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "corrupt line is skipped, valid neighbours survive")
}

func TestStats(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Append(entry(now.Add(-time.Hour), domain.ExecutionOK, 0)))
	require.NoError(t, store.Append(entry(now.Add(-30*time.Minute), domain.ExecutionOK, 0)))
	require.NoError(t, store.Append(entry(now.Add(-20*time.Minute), domain.ExecutionError, domain.ErrorCodeRuntime)))
	require.NoError(t, store.Append(entry(now.Add(-10*time.Minute), domain.ExecutionAbort, domain.ErrorCodeTimeout)))

	terminal := entry(now, domain.ExecutionOK, 0)
	terminal.Mode = domain.ModeTerminal
	require.NoError(t, store.Append(terminal))

	stats, err := store.Stats()
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalExecutions)
	assert.Equal(t, 3, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.Equal(t, 1, stats.AbortedExecutions)
	assert.Equal(t, 60, stats.SuccessRate)
	assert.Equal(t, 4, stats.ExecutionsByMode[domain.ModeKernel])
	assert.Equal(t, 1, stats.ExecutionsByMode[domain.ModeTerminal])
	assert.Equal(t, 1, stats.ErrorsByCategory[domain.CategoryRuntime])
	assert.Equal(t, 1, stats.ErrorsByCategory[domain.CategoryTimeout])
	require.NotNil(t, stats.OldestEntry)
	require.NotNil(t, stats.NewestEntry)
	assert.True(t, stats.NewestEntry.After(*stats.OldestEntry))
}

func TestStats_EmptyLog(t *testing.T) {
	store := testStore(t)
	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalExecutions)
	assert.Equal(t, 0, stats.SuccessRate)
	assert.Nil(t, stats.OldestEntry)
}

func TestClear(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Append(entry(time.Now(), domain.ExecutionOK, 0)))
	require.NoError(t, store.Clear())

	entries, err := store.Query(domain.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// clearing an already-missing log is fine
	fresh := testStore(t)
	assert.NoError(t, fresh.Clear())
}
