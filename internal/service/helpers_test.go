package service

import (
	"context"
	"testing"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"
	"qms-data/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	ctx   context.Context
	store *repository.Store
	kv    *store.MemoryKV
	log   *events.MemoryLog
	clock *time.Time
	svc   *Services
	users map[string]*domain.User
}

var baseTime = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := repository.NewMemoryStore()
	require.NoError(t, repository.SeedDemo(ctx, st, baseTime.AddDate(0, -1, 0)))

	clock := baseTime
	env := &testEnv{
		ctx:   ctx,
		store: st,
		kv:    store.NewMemoryKV(),
		log:   events.NewMemoryLog(100),
		clock: &clock,
		users: map[string]*domain.User{},
	}
	o := Options{AutoAssignTraining: true, TrainingDueDays: 14, KV: env.kv}
	for _, fn := range opts {
		fn(&o)
	}
	env.svc = New(Deps{
		Store:  st,
		Events: env.log,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return *env.clock },
	}, o)

	for _, id := range []string{
		repository.DemoAdminID, repository.DemoQAManagerID, repository.DemoInspectorID,
		repository.DemoSafetyOfficerID, repository.DemoDocControllerID, repository.DemoOperatorID,
		repository.DemoSalesID,
	} {
		u, err := st.Users.Get(ctx, id)
		require.NoError(t, err)
		env.users[id] = u
	}
	return env
}

func (e *testEnv) user(id string) *domain.User { return e.users[id] }

func (e *testEnv) advance(d time.Duration) { *e.clock = e.clock.Add(d) }

// addUser creates an extra active user directly in the store.
func (e *testEnv) addUser(t *testing.T, id string, role domain.Role, dept string) *domain.User {
	t.Helper()
	u := domain.User{
		Meta:       domain.Meta{ID: id, CreatedAt: baseTime, UpdatedAt: baseTime},
		Name:       "User " + id,
		Email:      id + "@qms.local",
		Role:       role,
		Department: dept,
		Active:     true,
	}
	require.NoError(t, e.store.Users.Create(e.ctx, u))
	e.users[id] = &u
	return &u
}

func (e *testEnv) eventTypes() []string {
	recent, _ := e.log.Recent(e.ctx, 0)
	out := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		out = append(out, recent[i].Type)
	}
	return out
}

func strPtr(s string) *string { return &s }
