package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colabtools/colabctl/internal/adapter/auth"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/logger"
)

func testApp(t *testing.T) *App {
	t.Helper()
	return &App{
		ctx:    context.Background(),
		logger: logger.NewPlainStyledLogger(slog.New(slog.DiscardHandler)),
	}
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []*domain.HistoryEntry
	filter  domain.HistoryFilter
	cleared bool
}

func (h *fakeHistory) Append(entry *domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *fakeHistory) Query(filter domain.HistoryFilter) ([]*domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = filter
	return h.entries, nil
}

func (h *fakeHistory) Stats() (*domain.HistoryStats, error) {
	return &domain.HistoryStats{
		TotalExecutions:      2,
		SuccessfulExecutions: 1,
		FailedExecutions:     1,
		SuccessRate:          50,
		ExecutionsByMode:     map[domain.ExecutionMode]int{domain.ModeKernel: 2},
		ErrorsByCategory:     map[domain.ErrorCategory]int{domain.CategoryRuntime: 1},
	}, nil
}

func (h *fakeHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = true
	return nil
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	a := testApp(t)
	root := a.newRootCmd()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "status", "history", "clear", "auth"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
}

func TestHistoryCommand_BuildsFilter(t *testing.T) {
	a := testApp(t)
	history := &fakeHistory{}
	a.history = history

	cmd := a.newHistoryCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--status", "error", "--mode", "kernel", "--category", "syntax", "--limit", "5"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, domain.ExecutionError, history.filter.Status)
	assert.Equal(t, domain.ModeKernel, history.filter.Mode)
	assert.Equal(t, domain.CategorySyntax, history.filter.Category)
	assert.Equal(t, 5, history.filter.Limit)
}

func TestHistoryCommand_DefaultLimit(t *testing.T) {
	a := testApp(t)
	history := &fakeHistory{}
	a.history = history

	cmd := a.newHistoryCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, domain.DefaultHistoryLimit, history.filter.Limit)
}

func TestHistoryCommand_SinceRejectsGarbage(t *testing.T) {
	a := testApp(t)
	a.history = &fakeHistory{}

	cmd := a.newHistoryCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--since", "yesterday-ish"})
	assert.Error(t, cmd.Execute())
}

func TestClearCommand(t *testing.T) {
	a := testApp(t)
	history := &fakeHistory{}
	a.history = history

	cmd := a.newClearCmd()
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())
	assert.True(t, history.cleared)
}

func TestAuthCommand_WithEnvToken(t *testing.T) {
	t.Setenv(auth.EnvAccessToken, "env-token")
	a := testApp(t)
	a.tokens = auth.NewFileTokenSource(t.TempDir())

	var out bytes.Buffer
	cmd := a.newAuthCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Access token available")
}

func TestAuthCommand_MissingCredentials(t *testing.T) {
	a := testApp(t)
	a.tokens = auth.NewFileTokenSource(t.TempDir())

	cmd := a.newAuthCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestPrintJSON_HistoryEntries(t *testing.T) {
	a := testApp(t)
	a.jsonOut = true
	a.history = &fakeHistory{entries: []*domain.HistoryEntry{
		{Timestamp: time.Now().UTC(), Command: "print(1)", Mode: domain.ModeKernel, Status: domain.ExecutionOK},
	}}

	// the JSON document must round-trip
	entries, err := a.history.Query(domain.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	data, err := json.Marshal(entries)
	require.NoError(t, err)

	var decoded []*domain.HistoryEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "print(1)", decoded[0].Command)
}

func TestParseSince(t *testing.T) {
	before := time.Now().Add(-24 * time.Hour)
	got, err := parseSince("24h")
	require.NoError(t, err)
	assert.WithinDuration(t, before, got, time.Minute)

	absolute, err := parseSince("2026-08-20T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, absolute.Year())

	_, err = parseSince("whenever")
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "print(1)", firstLine("print(1)"))
	assert.Equal(t, "import os …", firstLine("import os\nprint(os.getcwd())"))

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(firstLine(string(long))), 81)
}
