package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no carbon data for location")
)

// ReadingHistory holds a time-ordered list of readings for a location.
type ReadingHistory struct {
	Readings []carbon.Data
}

// MemoryStore is a concurrency-safe in-memory history of carbon readings,
// keyed by location string. It feeds the dashboard time-series.
type MemoryStore struct {
	mu sync.RWMutex

	data map[string]*ReadingHistory

	// retention configuration
	maxHistory int           // max number of readings per location
	maxAge     time.Duration // optional max age for readings
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ReadingHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveReading appends a new reading for a location and enforces retention.
func (s *MemoryStore) SaveReading(location string, data carbon.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[location]
	if !ok {
		history = &ReadingHistory{}
		s.data[location] = history
	}

	history.Readings = append(history.Readings, data)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Readings) > s.maxHistory {
		over := len(history.Readings) - s.maxHistory
		history.Readings = history.Readings[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Readings); i++ {
			if !history.Readings[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Readings) {
			history.Readings = history.Readings[i:]
		}
	}
}

// GetLatest returns the most recent reading for a location.
func (s *MemoryStore) GetLatest(location string) (carbon.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.Readings) == 0 {
		return carbon.Data{}, ErrNotFound
	}
	return history.Readings[len(history.Readings)-1], nil
}

// GetRange returns all readings for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(location string, from, to time.Time) ([]carbon.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.Readings) == 0 {
		return nil, ErrNotFound
	}

	var result []carbon.Data
	for _, reading := range history.Readings {
		if !reading.Timestamp.Before(from) && !reading.Timestamp.After(to) {
			result = append(result, reading)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
