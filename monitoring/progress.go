package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// A ProgressBar follows the ops of one replay. It is safe to update while
// the monitor serves it.
type ProgressBar struct {
	id        string
	name      string
	startTime time.Time
	total     uint64

	mu         sync.Mutex
	finished   uint64
	inProgress uint64
	current    string
}

// ProgressSnapshot is a consistent view of a progress bar.
type ProgressSnapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
	Current    string    `json:"current,omitempty"`
}

// ID returns the unique ID of the bar.
func (b *ProgressBar) ID() string {
	return b.id
}

// Start marks an op as running. The label shows which one.
func (b *ProgressBar) Start(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inProgress++
	b.current = label
}

// Finish marks a running op as done.
func (b *ProgressBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inProgress > 0 {
		b.inProgress--
	}

	b.finished++

	if b.inProgress == 0 {
		b.current = ""
	}
}

// Snapshot returns the current state of the bar.
func (b *ProgressBar) Snapshot() ProgressSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ProgressSnapshot{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		Finished:   b.finished,
		InProgress: b.inProgress,
		Current:    b.current,
	}
}

// MarshalJSON implements json.Marshaler.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Snapshot())
}
