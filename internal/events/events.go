package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event workflow audit event
type Event struct {
	Type       string    `json:"type"` // e.g. document.approved
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	Number     string    `json:"number,omitempty"` // human record number, e.g. NCR-2024-0003
	ActorID    string    `json:"actorId"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher receives workflow events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Reader returns the most recent events, newest first.
type Reader interface {
	Recent(ctx context.Context, n int) ([]Event, error)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher; all are attempted.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryLog bounded in-process event log, used when Redis is disabled.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

func NewMemoryLog(limit int) *MemoryLog {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryLog{limit: limit}
}

func (l *MemoryLog) Publish(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if over := len(l.events) - l.limit; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}
	return nil
}

func (l *MemoryLog) Recent(_ context.Context, n int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, 0, n)
	for i := len(l.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}
