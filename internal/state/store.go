package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maine/youtube_digest/internal/logging"
)

// ErrAlreadyCommitted is returned when Commit is called twice for one History.
var ErrAlreadyCommitted = errors.New("history already committed")

// History is the in-memory view of the seen-videos file for one run.
// Proposals are buffered and only become durable on FileStore.Commit.
type History struct {
	records   map[string]time.Time
	pending   map[string]time.Time
	committed bool
}

// NewHistory returns an empty history. Used for tests and first runs.
func NewHistory() *History {
	return &History{
		records: map[string]time.Time{},
		pending: map[string]time.Time{},
	}
}

// Contains reports whether id was seen in a previous run or proposed in this one.
func (h *History) Contains(id string) bool {
	if _, ok := h.records[id]; ok {
		return true
	}
	_, ok := h.pending[id]
	return ok
}

// Propose buffers id as seen at ts.
func (h *History) Propose(id string, ts time.Time) {
	h.pending[id] = ts.UTC()
}

// Len returns the number of records loaded from disk.
func (h *History) Len() int {
	return len(h.records)
}

// Pending returns the number of buffered proposals.
func (h *History) Pending() int {
	return len(h.pending)
}

// FileStore keeps the history as a flat JSON object {video_id: RFC3339 time}.
type FileStore struct {
	path      string
	retention time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

// NewFileStore creates a file store. Records older than retention are pruned on commit.
func NewFileStore(path string, retention time.Duration, clock func() time.Time, logger *slog.Logger) *FileStore {
	if clock == nil {
		clock = time.Now
	}
	return &FileStore{
		path:      path,
		retention: retention,
		clock:     clock,
		logger:    logging.OrDefault(logger),
	}
}

// Path returns the history file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the history file. A missing file yields an empty history.
// The legacy format (a JSON array of ids) is accepted; every id gets the
// load time as last-seen.
func (s *FileStore) Load(ctx context.Context) (*History, error) {
	_ = ctx

	h := NewHistory()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var current map[string]string
	if err := json.Unmarshal(data, &current); err == nil {
		for id, raw := range current {
			ts, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				// Unparseable timestamps are kept as expired and pruned on commit.
				ts = time.Time{}
			}
			h.records[id] = ts
		}
		return h, nil
	}

	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		now := s.clock().UTC()
		for _, id := range legacy {
			h.records[id] = now
		}
		s.logger.Info("history loaded from legacy list format", "records", len(legacy))
		return h, nil
	}

	// Keep the broken file for diagnosis and start from scratch.
	brokenPath := s.path + ".broken"
	_ = os.WriteFile(brokenPath, data, 0644)
	s.logger.Warn("history file is corrupted, starting empty", "path", s.path, "backup", brokenPath)
	return h, nil
}

// Commit merges the proposals into the records, prunes entries older than the
// retention horizon and writes the file atomically (temporary file + rename).
func (s *FileStore) Commit(ctx context.Context, h *History) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("history not committed: %w", err)
	}
	if h.committed {
		return ErrAlreadyCommitted
	}

	merged := make(map[string]time.Time, len(h.records)+len(h.pending))
	for id, ts := range h.records {
		merged[id] = ts
	}
	for id, ts := range h.pending {
		merged[id] = ts
	}

	cutoff := s.clock().Add(-s.retention)
	out := make(map[string]string, len(merged))
	for id, ts := range merged {
		if !ts.After(cutoff) {
			continue
		}
		out[id] = ts.UTC().Format(time.RFC3339Nano)
	}
	if pruned := len(merged) - len(out); pruned > 0 {
		s.logger.Info("history pruned", "before", len(merged), "after", len(out))
	}

	if err := s.write(out); err != nil {
		return err
	}

	h.committed = true
	return nil
}

// Stats describes the history file content.
type Stats struct {
	Records int
	Oldest  time.Time
	Newest  time.Time
}

// Stats summarizes a loaded history.
func (h *History) Stats() Stats {
	st := Stats{Records: len(h.records)}
	for _, ts := range h.records {
		if st.Oldest.IsZero() || ts.Before(st.Oldest) {
			st.Oldest = ts
		}
		if ts.After(st.Newest) {
			st.Newest = ts
		}
	}
	return st
}

func (s *FileStore) write(records map[string]string) error {
	// encoding/json writes map keys sorted, so unchanged input gives identical bytes.
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp history file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp history file: %w", err)
	}

	return nil
}
