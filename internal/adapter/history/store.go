// Package history persists the execution log as JSON lines, one entry
// per line, append-only.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

// Store reads and appends the JSON-lines execution log
type Store struct {
	mu     sync.Mutex
	path   string
	logger *logger.StyledLogger
}

var _ ports.HistoryStore = (*Store)(nil)

func NewStore(path string, log *logger.StyledLogger) *Store {
	return &Store{path: path, logger: log}
}

// Append writes one entry as a single line. The persisted timestamp is
// forced to UTC and the category is derived from the error code so
// queries never depend on what the writer happened to fill in; the
// caller's entry is left untouched.
func (s *Store) Append(entry *domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *entry
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()
	record.Category = domain.CategoryForCode(record.ErrorCode)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	// one Write call per entry keeps lines whole under concurrent
	// processes appending to the same log
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// Query loads the log, drops lines that no longer parse, applies the
// filter, and returns entries newest first.
func (s *Store) Query(filter domain.HistoryFilter) ([]*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if matches(entry, filter) {
			matched = append(matched, entry)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	limit := filter.Limit
	if limit < 0 {
		limit = 0
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Stats aggregates the whole log regardless of any query limit
func (s *Store) Stats() (*domain.HistoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	stats := &domain.HistoryStats{
		ExecutionsByMode: make(map[domain.ExecutionMode]int),
		ErrorsByCategory: make(map[domain.ErrorCategory]int),
	}

	for _, entry := range entries {
		stats.TotalExecutions++
		stats.ExecutionsByMode[entry.Mode]++

		switch entry.Status {
		case domain.ExecutionOK:
			stats.SuccessfulExecutions++
		case domain.ExecutionAbort:
			stats.AbortedExecutions++
		default:
			stats.FailedExecutions++
		}

		if category := domain.CategoryForCode(entry.ErrorCode); category != "" {
			stats.ErrorsByCategory[category]++
		}

		ts := entry.Timestamp
		if stats.OldestEntry == nil || ts.Before(*stats.OldestEntry) {
			stats.OldestEntry = &ts
		}
		if stats.NewestEntry == nil || ts.After(*stats.NewestEntry) {
			stats.NewestEntry = &ts
		}
	}

	if stats.TotalExecutions > 0 {
		stats.SuccessRate = int(math.Round(100 * float64(stats.SuccessfulExecutions) / float64(stats.TotalExecutions)))
	}
	return stats, nil
}

// Clear truncates the log
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Truncate(s.path, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// load reads every parseable line. A missing file is an empty log;
// corrupt lines are logged and skipped rather than failing the query.
func (s *Store) load() ([]*domain.HistoryEntry, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var entries []*domain.HistoryEntry
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			skipped++
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn("skipped corrupt history lines", "count", skipped, "path", s.path)
	}
	return entries, nil
}

func matches(entry *domain.HistoryEntry, filter domain.HistoryFilter) bool {
	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}
	if filter.Mode != "" && entry.Mode != filter.Mode {
		return false
	}
	if filter.Category != "" && domain.CategoryForCode(entry.ErrorCode) != filter.Category {
		return false
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && entry.Timestamp.After(filter.Until) {
		return false
	}
	return true
}
