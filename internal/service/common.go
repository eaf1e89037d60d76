package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"
	"qms-data/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps shared by every service
type Deps struct {
	Store     *repository.Store
	Events    events.Publisher
	Sequencer *Sequencer
	Logger    *zap.Logger
	Now       func() time.Time
	// Workflow serializes read-modify-write steps across all services; an NCR
	// rewrites tickets and complaints, an import rewrites everything.
	Workflow *sync.Mutex
}

// base shared plumbing of every service.
type base struct {
	mu     *sync.Mutex
	store  *repository.Store
	events events.Publisher
	seq    *Sequencer
	logger *zap.Logger
	now    func() time.Time
}

func (b *base) init(d Deps) {
	b.store, b.events, b.seq, b.logger, b.now = d.Store, d.Events, d.Sequencer, d.Logger, d.Now
	b.mu = d.Workflow
	if b.mu == nil {
		b.mu = &sync.Mutex{}
	}
	if b.events == nil {
		b.events = events.Nop{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	if b.seq == nil {
		b.seq = NewSequencer(store.NewMemoryKV())
	}
}

// publish never fails the business operation; broker errors are logged.
func (b *base) publish(ctx context.Context, e events.Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}
	if err := b.events.Publish(ctx, e); err != nil {
		b.logger.Warn("Failed to publish workflow event",
			zap.String("type", e.Type),
			zap.String("record_id", e.RecordID),
			zap.Error(err),
		)
	}
}

func newID() string { return uuid.New().String() }

func historyEntry(at time.Time, actor *domain.User, action, from, to, comment string) domain.HistoryEntry {
	h := domain.HistoryEntry{At: at, Action: action, From: from, To: to, Comment: comment}
	if actor != nil {
		h.ActorID = actor.ID
	}
	return h
}

func actorID(actor *domain.User) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func transitionErr(kind, id, from, action string) error {
	return fmt.Errorf("%w: %s %s is %s, cannot %s", domain.ErrInvalidTransition, kind, id, from, action)
}

func forbiddenErr(action string) error {
	return fmt.Errorf("%w: %s", domain.ErrForbidden, action)
}

func requireActor(actor *domain.User) error {
	if actor == nil || actor.ID == "" {
		return forbiddenErr("user identity required")
	}
	if !actor.Active {
		return forbiddenErr("user is inactive")
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func timePtr(t time.Time) *time.Time { return &t }

// ListRequest common list query
type ListRequest struct {
	Search string
	Status string
	Range  domain.DateRange
	Page   int
	Size   int
}

func (r ListRequest) filter() repository.Filter {
	return repository.Filter{Search: strings.TrimSpace(r.Search), Status: strings.TrimSpace(r.Status), Range: r.Range}
}

// Page list response
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func listPage[T domain.Record](ctx context.Context, repo repository.Repository[T], req ListRequest) (*Page[T], error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	items, total, err := repo.List(ctx, req.filter(), req.Page, req.Size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total}, nil
}

// nextNumber allocates the next PREFIX-YYYY-NNNN for a collection.
func nextNumber[T domain.Record](ctx context.Context, b *base, repo repository.Repository[T], prefix string, number func(T) string) (string, error) {
	all, err := repo.All(ctx)
	if err != nil {
		return "", err
	}
	used := make([]string, 0, len(all))
	for _, rec := range all {
		used = append(used, number(rec))
	}
	return b.seq.Next(ctx, prefix, b.now().Year(), used)
}
