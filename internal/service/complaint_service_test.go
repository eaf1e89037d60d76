package service

import (
	"testing"

	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplaintService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	complaints := env.svc.Complaints
	sales := env.user(repository.DemoSalesID)
	inspector := env.user(repository.DemoInspectorID)
	manager := env.user(repository.DemoQAManagerID)

	_, err := complaints.Create(env.ctx, sales, CreateComplaintRequest{CustomerID: "c-unknown", Description: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err := complaints.Create(env.ctx, sales, CreateComplaintRequest{
		CustomerID:  "c-freshfoods",
		ItemID:      "i-carton-250",
		JobNumber:   "J-2201",
		Description: "Cartons glued shut",
	})
	require.NoError(t, err)
	assert.Equal(t, "CC-2024-0001", c.ComplaintNumber)
	assert.Equal(t, domain.ComplaintNew, c.Status)
	assert.Equal(t, domain.SeverityMedium, c.Severity)
	assert.Equal(t, baseTime, c.ReceivedDate)

	_, err = complaints.Respond(env.ctx, manager, c.ID, "sorry")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	c, err = complaints.StartInvestigation(env.ctx, inspector, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintInvestigating, c.Status)

	_, err = complaints.Respond(env.ctx, manager, c.ID, "credit issued")
	assert.ErrorIs(t, err, domain.ErrValidation, "investigation first")

	c, err = complaints.RecordInvestigation(env.ctx, inspector, c.ID, InvestigationRequest{
		Investigation: "Glue gun overlap on line 3",
		RootCause:     "Worn nozzle",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintInvestigating, c.Status)

	_, err = complaints.Respond(env.ctx, inspector, c.ID, "credit issued")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	c, err = complaints.Respond(env.ctx, manager, c.ID, "Credit issued, nozzle replaced")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintResponded, c.Status)

	c, err = complaints.Close(env.ctx, manager, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintClosed, c.Status)
	require.NotNil(t, c.ClosedAt)

	c, err = complaints.Reopen(env.ctx, manager, c.ID, "customer disputes")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintInvestigating, c.Status)
	assert.Nil(t, c.ClosedAt)
}

func TestComplaintService_RejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	complaints := env.svc.Complaints
	manager := env.user(repository.DemoQAManagerID)

	c, err := complaints.Create(env.ctx, manager, CreateComplaintRequest{CustomerID: "c-pharmaco", Description: "Late delivery"})
	require.NoError(t, err)

	_, err = complaints.Reject(env.ctx, manager, c.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err = complaints.Reject(env.ctx, manager, c.ID, "logistics issue, not quality")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintRejected, c.Status)
	assert.Equal(t, "logistics issue, not quality", c.RejectionReason)

	_, err = complaints.RaiseNCR(env.ctx, manager, c.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestComplaintService_RaiseNCRAndNotice(t *testing.T) {
	env := newTestEnv(t)
	complaints := env.svc.Complaints
	manager := env.user(repository.DemoQAManagerID)

	c, err := complaints.Create(env.ctx, manager, CreateComplaintRequest{
		CustomerID:  "c-freshfoods",
		ItemID:      "i-label-a5",
		JobNumber:   "J-3300",
		Description: "Labels lifting",
		Severity:    domain.SeverityHigh,
	})
	require.NoError(t, err)

	ncr, err := complaints.RaiseNCR(env.ctx, manager, c.ID, 1200, "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, ncr.ComplaintID)
	assert.Equal(t, "J-3300", ncr.JobNumber)
	assert.Contains(t, ncr.Description, c.ComplaintNumber)

	_, err = complaints.RaiseNCR(env.ctx, manager, c.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	notice, err := complaints.Notice(env.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Foods Ltd", notice.CustomerName)
	assert.Equal(t, "Dana Reed", notice.ContactName)
	assert.Equal(t, "LBL-A5", notice.ItemCode)
	assert.Equal(t, ncr.NCRNumber, notice.NCRNumber)
	assert.Equal(t, domain.ComplaintNew, notice.Status)
}
