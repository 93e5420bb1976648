package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// CommitStats is the persisted commit tracking aggregate. Counters are
// monotonically non-decreasing except on explicit reset.
type CommitStats struct {
	TotalCommits       int    `json:"totalCommits"`
	SustainableCommits int    `json:"sustainableCommits"`
	LowCarbonCommits   int    `json:"lowCarbonCommits"`
	ModerateCommits    int    `json:"moderateCommits"`
	LastCommitTime     string `json:"lastCommitTime,omitempty"`
	LastCommitCarbon   string `json:"lastCommitCarbon,omitempty"`
}

// statsFile is the on-disk record: the stats aggregate plus the last
// observed commit identifier.
type statsFile struct {
	CommitStats    CommitStats `json:"commitStats"`
	LastCommitHash string      `json:"lastCommitHash,omitempty"`
}

// StatsStore is a file-backed store for commit stats. All mutation goes
// through read-modify-write under a single lock; the file is replaced
// atomically via a temp file and rename.
type StatsStore struct {
	mu    sync.Mutex
	path  string
	state statsFile
}

// NewStatsStore opens (or initializes) the stats file at path.
func NewStatsStore(path string) (*StatsStore, error) {
	s := &StatsStore{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read stats file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse stats file %s: %w", path, err)
	}
	return s, nil
}

// Stats returns a snapshot of the current aggregate.
func (s *StatsStore) Stats() CommitStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CommitStats
}

// Update applies fn to the aggregate and persists the result.
func (s *StatsStore) Update(fn func(*CommitStats)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state.CommitStats)
	return s.persistLocked()
}

// LastCommitHash returns the last observed commit identifier.
func (s *StatsStore) LastCommitHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastCommitHash
}

// SetLastCommitHash records the last observed commit identifier.
func (s *StatsStore) SetLastCommitHash(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastCommitHash = hash
	return s.persistLocked()
}

// Reset zeroes every counter and clears the last commit fields and the
// last observed hash in one atomic write.
func (s *StatsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = statsFile{}
	return s.persistLocked()
}

func (s *StatsStore) persistLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".stats-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp stats file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp stats file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace stats file: %w", err)
	}
	return nil
}
