package service

import (
	"testing"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDisposition() domain.Disposition {
	due := baseTime.AddDate(0, 0, 7)
	return domain.Disposition{
		Decision:         domain.DispositionRework,
		RootCause:        "Ink viscosity drift",
		CorrectiveAction: "Re-print affected lot",
		PreventiveAction: "Hourly viscosity check",
		ResponsibleID:    repository.DemoOperatorID,
		DueDate:          &due,
	}
}

func TestNCRService_IncompleteDispositionLeavesRecordUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ncrs := env.svc.NCRs
	inspector := env.user(repository.DemoInspectorID)

	ncr, err := ncrs.Create(env.ctx, inspector, CreateNCRRequest{Description: "Colour out of tolerance", QuantityAffected: 500})
	require.NoError(t, err)
	before, err := ncrs.Get(env.ctx, ncr.ID)
	require.NoError(t, err)

	cases := map[string]func(d *domain.Disposition){
		"decision":         func(d *domain.Disposition) { d.Decision = "" },
		"rootCause":        func(d *domain.Disposition) { d.RootCause = "   " },
		"correctiveAction": func(d *domain.Disposition) { d.CorrectiveAction = "" },
		"preventiveAction": func(d *domain.Disposition) { d.PreventiveAction = "" },
		"responsibleId":    func(d *domain.Disposition) { d.ResponsibleID = "" },
		"dueDate":          func(d *domain.Disposition) { d.DueDate = nil },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			d := fullDisposition()
			mutate(&d)
			_, err := ncrs.SubmitDisposition(env.ctx, inspector, ncr.ID, d)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), field)

			after, err := ncrs.Get(env.ctx, ncr.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, domain.NCROpen, after.Status)
		})
	}
}

func TestNCRService_DispositionApproval(t *testing.T) {
	env := newTestEnv(t)
	ncrs := env.svc.NCRs
	inspector := env.user(repository.DemoInspectorID)
	manager := env.user(repository.DemoQAManagerID)

	ncr, err := ncrs.Create(env.ctx, inspector, CreateNCRRequest{Description: "Board delamination", QuantityAffected: 40, SupplierID: "s-boardmill"})
	require.NoError(t, err)
	assert.Equal(t, "NCR-2024-0001", ncr.NCRNumber)
	assert.Equal(t, domain.NCROpen, ncr.Status)

	ncr, err = ncrs.SubmitDisposition(env.ctx, manager, ncr.ID, fullDisposition())
	require.NoError(t, err)
	assert.Equal(t, domain.NCRPendingApproval, ncr.Status)
	assert.Equal(t, manager.ID, ncr.DispositionedBy)

	_, err = ncrs.ApproveDisposition(env.ctx, manager, ncr.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden, "proposer cannot approve")

	_, err = ncrs.ApproveDisposition(env.ctx, inspector, ncr.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden, "inspector cannot approve")

	ncr, err = ncrs.RejectDisposition(env.ctx, env.user(repository.DemoAdminID), ncr.ID, "root cause not verified")
	require.NoError(t, err)
	assert.Equal(t, domain.NCROpen, ncr.Status)
	require.NotNil(t, ncr.Disposition, "proposal kept for editing")

	_, err = ncrs.SubmitDisposition(env.ctx, inspector, ncr.ID, fullDisposition())
	require.NoError(t, err)
	ncr, err = ncrs.ApproveDisposition(env.ctx, manager, ncr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NCRDispositioned, ncr.Status)
	assert.Equal(t, manager.ID, ncr.ApprovedBy)

	_, err = ncrs.Reopen(env.ctx, manager, ncr.ID, "recurrence")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	env.advance(time.Hour)
	ncr, err = ncrs.Close(env.ctx, manager, ncr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NCRClosed, ncr.Status)
	require.NotNil(t, ncr.ClosedAt)

	_, err = ncrs.Reopen(env.ctx, manager, ncr.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	ncr, err = ncrs.Reopen(env.ctx, manager, ncr.ID, "recurrence")
	require.NoError(t, err)
	assert.Equal(t, domain.NCROpen, ncr.Status)
	assert.Nil(t, ncr.ClosedAt)

	actions := make([]string, 0, len(ncr.History))
	for _, h := range ncr.History {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{
		"raised", "disposition-submitted", "disposition-rejected", "disposition-submitted",
		"disposition-approved", "closed", "reopened",
	}, actions)
}

func TestNCRService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ncrs := env.svc.NCRs
	op := env.user(repository.DemoOperatorID)

	_, err := ncrs.Create(env.ctx, op, CreateNCRRequest{Description: "", QuantityAffected: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = ncrs.Create(env.ctx, op, CreateNCRRequest{Description: "x", QuantityAffected: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = ncrs.Create(env.ctx, op, CreateNCRRequest{Description: "x", QuantityAffected: 1, TicketID: "missing"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ncrs.SubmitDisposition(env.ctx, op, "any", fullDisposition())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	page, err := ncrs.List(env.ctx, ListRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
