package journal

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal keeps delivery history in memory. It backs tests and
// deployments that run without MongoDB.
type MemoryJournal struct {
	mu          sync.Mutex
	attempts    []Attempt
	deadLetters []DeadLetter
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// RecordAttempt implements Journal.
func (j *MemoryJournal) RecordAttempt(ctx context.Context, attempt *Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	a := *attempt
	if a.At.IsZero() {
		a.At = time.Now()
	}
	j.attempts = append(j.attempts, a)
	return nil
}

// RecordDeadLetter implements Journal.
func (j *MemoryJournal) RecordDeadLetter(ctx context.Context, letter *DeadLetter) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	l := *letter
	if l.At.IsZero() {
		l.At = time.Now()
	}
	j.deadLetters = append(j.deadLetters, l)
	return nil
}

// Attempts returns a copy of all recorded attempts.
func (j *MemoryJournal) Attempts() []Attempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Attempt(nil), j.attempts...)
}

// DeadLetters returns a copy of all recorded dead letters.
func (j *MemoryJournal) DeadLetters() []DeadLetter {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]DeadLetter(nil), j.deadLetters...)
}
