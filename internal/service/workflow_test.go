package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowTickets runs hook once, in the middle of the first ticket write.
type slowTickets struct {
	repository.Repository[domain.QATicket]
	once sync.Once
	hook func()
}

func (s *slowTickets) Update(ctx context.Context, t domain.QATicket) error {
	s.once.Do(s.hook)
	return s.Repository.Update(ctx, t)
}

func TestServices_ShareOneWorkflowLock(t *testing.T) {
	env := newTestEnv(t)
	mu := env.svc.NCRs.mu
	require.NotNil(t, mu)
	for name, got := range map[string]*sync.Mutex{
		"tickets":    env.svc.Tickets.mu,
		"complaints": env.svc.Complaints.mu,
		"documents":  env.svc.Documents.mu,
		"backup":     env.svc.Backup.mu,
	} {
		assert.Same(t, mu, got, name)
	}
}

func TestTicketService_EscalateWaitsForAssign(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.user(repository.DemoInspectorID)
	tk, err := env.svc.Tickets.Create(env.ctx, inspector, CreateTicketRequest{JobNumber: "J-9", Issue: "Glue skip"})
	require.NoError(t, err)

	escalated := make(chan error, 1)
	finishedEarly := false
	tickets := &slowTickets{Repository: env.store.Tickets}
	tickets.hook = func() {
		go func() {
			_, err := env.svc.Tickets.Escalate(env.ctx, inspector, tk.ID, 500, "")
			escalated <- err
		}()
		select {
		case err := <-escalated:
			finishedEarly = true
			escalated <- err
		case <-time.After(50 * time.Millisecond):
		}
	}
	env.store.Tickets = tickets

	_, err = env.svc.Tickets.Assign(env.ctx, inspector, tk.ID, inspector.ID)
	require.NoError(t, err)
	require.NoError(t, <-escalated)
	assert.False(t, finishedEarly, "escalation ran while the assignment was being written")

	got, err := env.svc.Tickets.Get(env.ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketEscalated, got.Status)
	assert.Equal(t, inspector.ID, got.AssignedTo)
	assert.NotEmpty(t, got.NCRID)

	_, err = env.svc.Tickets.Escalate(env.ctx, inspector, tk.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

type brokenDocuments struct {
	repository.Repository[domain.Document]
}

func (brokenDocuments) UpdateAll(context.Context, []domain.Document) error {
	return errors.New("connection reset")
}

func TestDocumentService_FailedApprovalKeepsPreviousVersionInForce(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)

	v1 := approvedDocument(t, env, "SOP-010", "Ink mixing")
	v2, err := docs.Revise(env.ctx, author, v1.ID)
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, v2.ID)
	require.NoError(t, err)
	_, err = docs.Approve(env.ctx, env.user(repository.DemoQAManagerID), v2.ID, "")
	require.NoError(t, err)

	env.store.Documents = brokenDocuments{env.store.Documents}
	_, err = docs.Approve(env.ctx, env.user(repository.DemoAdminID), v2.ID, "")
	require.Error(t, err)

	got, err := docs.Get(env.ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, got.Status)
	got, err = docs.Get(env.ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocPendingApproval, got.Status)
	assert.NotContains(t, env.eventTypes(), "document.archived")
}
