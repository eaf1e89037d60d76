package service

import (
	"testing"

	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftRequest(number, content string) DocumentRequest {
	docType := domain.DocTypeSOP
	approvers := []string{repository.DemoQAManagerID, repository.DemoAdminID}
	return DocumentRequest{
		DocNumber:   strPtr(number),
		Title:       strPtr("Press line start-up"),
		DocType:     &docType,
		Department:  strPtr("Quality"),
		Content:     strPtr(content),
		ApproverIDs: &approvers,
	}
}

// approvedDocument creates, submits and fully approves a document.
func approvedDocument(t *testing.T, env *testEnv, number, content string) *domain.Document {
	t.Helper()
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)
	doc, err := docs.Create(env.ctx, author, draftRequest(number, content))
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, doc.ID)
	require.NoError(t, err)
	_, err = docs.Approve(env.ctx, env.user(repository.DemoQAManagerID), doc.ID, "ok")
	require.NoError(t, err)
	doc, err = docs.Approve(env.ctx, env.user(repository.DemoAdminID), doc.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.DocApproved, doc.Status)
	return doc
}

func TestDocumentService_ApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)

	doc, err := docs.Create(env.ctx, author, draftRequest("SOP-001", "1. Check guards"))
	require.NoError(t, err)
	assert.Equal(t, domain.DocDraft, doc.Status)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, author.ID, doc.AuthorID)

	doc, err = docs.Submit(env.ctx, author, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocPendingApproval, doc.Status)

	doc, err = docs.Approve(env.ctx, env.user(repository.DemoQAManagerID), doc.ID, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, domain.DocPendingApproval, doc.Status, "one signature of two keeps it pending")
	assert.Len(t, doc.Approvals, 1)
	assert.Nil(t, doc.EffectiveDate)

	_, err = docs.Approve(env.ctx, env.user(repository.DemoQAManagerID), doc.ID, "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = docs.Approve(env.ctx, env.user(repository.DemoOperatorID), doc.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	doc, err = docs.Approve(env.ctx, env.user(repository.DemoAdminID), doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, doc.Status)
	require.NotNil(t, doc.EffectiveDate)
	assert.Equal(t, baseTime, *doc.EffectiveDate)

	stored, err := docs.Get(env.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, stored.Status)

	// Quality has three active users in the demo data.
	training, err := env.svc.Training.List(env.ctx, TrainingListRequest{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, training.Total)

	assert.Contains(t, env.eventTypes(), "document.approved")
}

func TestDocumentService_LastApprovalArchivesPreviousVersion(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)

	v1 := approvedDocument(t, env, "SOP-002", "Line clearance\nStep A")

	v2, err := docs.Revise(env.ctx, author, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, v1.ID, v2.PreviousVersionID)
	assert.Equal(t, domain.DocDraft, v2.Status)

	_, err = docs.Revise(env.ctx, author, v1.ID)
	assert.ErrorIs(t, err, domain.ErrConflict, "only one open revision per document")

	still, err := docs.Get(env.ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, still.Status, "v1 stays in force while v2 is drafted")

	_, err = docs.Update(env.ctx, author, v2.ID, DocumentRequest{Content: strPtr("Line clearance\nStep A\nStep B")})
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, v2.ID)
	require.NoError(t, err)
	_, err = docs.Approve(env.ctx, env.user(repository.DemoQAManagerID), v2.ID, "")
	require.NoError(t, err)

	still, err = docs.Get(env.ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, still.Status, "partial approval does not supersede")

	v2, err = docs.Approve(env.ctx, env.user(repository.DemoAdminID), v2.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, v2.Status)

	archived, err := docs.Get(env.ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocArchived, archived.Status)
	last := archived.History[len(archived.History)-1]
	assert.Equal(t, "superseded", last.Action)

	history, err := docs.History(env.ctx, "SOP-002")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.Equal(t, 1, history[1].Version)

	diff, err := docs.Diff(env.ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, diff.FromVersion)
	assert.Equal(t, 2, diff.ToVersion)
	assert.Equal(t, len("\nStep B"), diff.Inserted)
	assert.Zero(t, diff.Deleted)
	assert.NotEmpty(t, diff.Patch)
}

func TestDocumentService_SubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)

	req := draftRequest("SOP-003", "")
	doc, err := docs.Create(env.ctx, author, req)
	require.NoError(t, err)

	_, err = docs.Submit(env.ctx, author, doc.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "content required")

	self := []string{author.ID}
	_, err = docs.Update(env.ctx, author, doc.ID, DocumentRequest{Content: strPtr("text"), ApproverIDs: &self})
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, doc.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "author cannot approve")

	none := []string{}
	_, err = docs.Update(env.ctx, author, doc.ID, DocumentRequest{ApproverIDs: &none})
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, doc.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "approver required")

	ghost := []string{"u-missing"}
	_, err = docs.Update(env.ctx, author, doc.ID, DocumentRequest{ApproverIDs: &ghost})
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, doc.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "approver must exist")

	stored, err := docs.Get(env.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocDraft, stored.Status)
}

func TestDocumentService_RejectAndRework(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)
	manager := env.user(repository.DemoQAManagerID)

	doc, err := docs.Create(env.ctx, author, draftRequest("WI-010", "Setup"))
	require.NoError(t, err)
	_, err = docs.Submit(env.ctx, author, doc.ID)
	require.NoError(t, err)
	_, err = docs.Approve(env.ctx, manager, doc.ID, "")
	require.NoError(t, err)

	_, err = docs.Reject(env.ctx, manager, doc.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	doc, err = docs.Reject(env.ctx, env.user(repository.DemoAdminID), doc.ID, "missing torque values")
	require.NoError(t, err)
	assert.Equal(t, domain.DocRejected, doc.Status)
	assert.Empty(t, doc.Approvals)
	assert.Equal(t, "missing torque values", doc.RejectionReason)

	_, err = docs.Approve(env.ctx, manager, doc.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	doc, err = docs.Update(env.ctx, author, doc.ID, DocumentRequest{Content: strPtr("Setup with torque 12Nm")})
	require.NoError(t, err)
	assert.Equal(t, domain.DocDraft, doc.Status)
	assert.Empty(t, doc.RejectionReason)
}

func TestDocumentService_NumberingAndPermissions(t *testing.T) {
	env := newTestEnv(t)
	docs := env.svc.Documents
	author := env.user(repository.DemoDocControllerID)
	operator := env.user(repository.DemoOperatorID)

	doc, err := docs.Create(env.ctx, author, draftRequest("FRM-001", "form"))
	require.NoError(t, err)

	_, err = docs.Create(env.ctx, author, draftRequest("frm-001", "other"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = docs.Update(env.ctx, operator, doc.ID, DocumentRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	approved := approvedDocument(t, env, "POL-001", "policy")
	_, err = docs.Archive(env.ctx, operator, approved.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	err = docs.Delete(env.ctx, author, approved.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	archived, err := docs.Archive(env.ctx, author, approved.ID, "obsolete")
	require.NoError(t, err)
	assert.Equal(t, domain.DocArchived, archived.Status)

	// an archived number can be reused by a new document
	_, err = docs.Create(env.ctx, author, draftRequest("POL-001", "new policy"))
	assert.NoError(t, err)

	require.NoError(t, docs.Delete(env.ctx, author, doc.ID))
	_, err = docs.Get(env.ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
