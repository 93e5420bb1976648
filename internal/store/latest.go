package store

import (
	"sync"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

// Latest is the process-wide slot for the most recent carbon reading.
// It has a single writer (the refresh path) and multiple readers (status,
// dashboard, commit tracking); values are replaced whole, never merged,
// and readers receive value snapshots.
type Latest struct {
	mu   sync.RWMutex
	data carbon.Data
	ok   bool
}

func NewLatest() *Latest {
	return &Latest{}
}

// Set replaces the held reading.
func (l *Latest) Set(data carbon.Data) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = data
	l.ok = true
}

// Get returns a snapshot of the held reading and whether one exists.
func (l *Latest) Get() (carbon.Data, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data, l.ok
}
