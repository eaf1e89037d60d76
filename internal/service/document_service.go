package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
)

// DocumentService document control: drafting, multi-signature approval,
// revisions and obsoleting.
type DocumentService struct {
	base
	training   *TrainingService
	autoAssign bool
}

func NewDocumentService(d Deps, training *TrainingService, autoAssign bool) *DocumentService {
	s := &DocumentService{training: training, autoAssign: autoAssign}
	s.init(d)
	return s
}

var docEditors = []domain.Role{domain.RoleDocController}

// DocumentRequest create payload; on update nil fields are left unchanged.
type DocumentRequest struct {
	DocNumber   *string              `json:"docNumber,omitempty"`
	Title       *string              `json:"title,omitempty"`
	DocType     *domain.DocumentType `json:"docType,omitempty"`
	Department  *string              `json:"department,omitempty"`
	Content     *string              `json:"content,omitempty"`
	ApproverIDs *[]string            `json:"approverIds,omitempty"`
}

func (s *DocumentService) List(ctx context.Context, req ListRequest) (*Page[domain.Document], error) {
	return listPage(ctx, s.store.Documents, req)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.Documents.Get(ctx, id)
}

func (s *DocumentService) Create(ctx context.Context, actor *domain.User, req DocumentRequest) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	doc := domain.Document{
		Meta:     domain.Meta{ID: newID()},
		Version:  1,
		Status:   domain.DocDraft,
		AuthorID: actor.ID,
	}
	applyDocumentPatch(&doc, req)
	if blank(doc.Title) {
		return nil, validationErr("title is required")
	}
	if blank(doc.DocNumber) {
		return nil, validationErr("docNumber is required")
	}
	if !doc.DocType.Valid() {
		return nil, validationErr("invalid docType %q", doc.DocType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDocNumber(ctx, doc.DocNumber, ""); err != nil {
		return nil, err
	}
	now := s.now()
	doc.Touch(now)
	doc.History = append(doc.History, historyEntry(now, actor, "created", "", string(doc.Status), ""))
	if err := s.store.Documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	s.emit(ctx, actor, &doc, "document.created", "", "")
	return &doc, nil
}

// checkDocNumber rejects a number already used by another non-archived
// document. Revisions reuse the number without passing through here.
func (s *DocumentService) checkDocNumber(ctx context.Context, number, selfID string) error {
	all, err := s.store.Documents.All(ctx)
	if err != nil {
		return err
	}
	for _, d := range all {
		if d.ID == selfID || d.Status == domain.DocArchived {
			continue
		}
		if strings.EqualFold(d.DocNumber, number) {
			return fmt.Errorf("%w: document number %s already in use", domain.ErrConflict, number)
		}
	}
	return nil
}

func applyDocumentPatch(doc *domain.Document, req DocumentRequest) {
	if req.DocNumber != nil {
		doc.DocNumber = strings.TrimSpace(*req.DocNumber)
	}
	if req.Title != nil {
		doc.Title = strings.TrimSpace(*req.Title)
	}
	if req.DocType != nil {
		doc.DocType = *req.DocType
	}
	if req.Department != nil {
		doc.Department = strings.TrimSpace(*req.Department)
	}
	if req.Content != nil {
		doc.Content = *req.Content
	}
	if req.ApproverIDs != nil {
		doc.ApproverIDs = dedupe(*req.ApproverIDs)
	}
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *DocumentService) canEdit(actor *domain.User, doc *domain.Document) error {
	if doc.AuthorID == actor.ID || actor.HasRole(docEditors...) {
		return nil
	}
	return forbiddenErr("only the author or DOC_CONTROLLER can edit this document")
}

// Update edits a DRAFT or REJECTED document. Editing a REJECTED document
// returns it to DRAFT.
func (s *DocumentService) Update(ctx context.Context, actor *domain.User, id string, req DocumentRequest) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canEdit(actor, doc); err != nil {
		return nil, err
	}
	if doc.Status != domain.DocDraft && doc.Status != domain.DocRejected {
		return nil, transitionErr("document", id, string(doc.Status), "edit")
	}
	number := doc.DocNumber
	applyDocumentPatch(doc, req)
	if blank(doc.Title) {
		return nil, validationErr("title is required")
	}
	if blank(doc.DocNumber) {
		return nil, validationErr("docNumber is required")
	}
	if !doc.DocType.Valid() {
		return nil, validationErr("invalid docType %q", doc.DocType)
	}
	if !strings.EqualFold(number, doc.DocNumber) {
		if doc.Version > 1 {
			return nil, validationErr("docNumber cannot change on a revision")
		}
		if err := s.checkDocNumber(ctx, doc.DocNumber, doc.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	from := doc.Status
	if from == domain.DocRejected {
		doc.Status = domain.DocDraft
		doc.RejectionReason = ""
	}
	doc.History = append(doc.History, historyEntry(now, actor, "edited", string(from), string(doc.Status), ""))
	doc.Touch(now)
	if err := s.store.Documents.Update(ctx, *doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	if from != doc.Status {
		s.emit(ctx, actor, doc, "document.reopened", string(from), "")
	}
	return doc, nil
}

// Submit sends a DRAFT for approval.
func (s *DocumentService) Submit(ctx context.Context, actor *domain.User, id string) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canEdit(actor, doc); err != nil {
		return nil, err
	}
	if doc.Status != domain.DocDraft {
		return nil, transitionErr("document", id, string(doc.Status), "submit")
	}
	if blank(doc.Content) {
		return nil, validationErr("content is required before submission")
	}
	if len(doc.ApproverIDs) == 0 {
		return nil, validationErr("at least one approver is required")
	}
	for _, uid := range doc.ApproverIDs {
		if uid == doc.AuthorID {
			return nil, validationErr("the author cannot approve their own document")
		}
		u, err := s.store.Users.Get(ctx, uid)
		if err != nil {
			return nil, validationErr("approver %s does not exist", uid)
		}
		if !u.Active {
			return nil, validationErr("approver %s is inactive", uid)
		}
	}

	now := s.now()
	doc.Status = domain.DocPendingApproval
	doc.Approvals = nil
	doc.RejectionReason = ""
	doc.History = append(doc.History, historyEntry(now, actor, "submitted", string(domain.DocDraft), string(doc.Status), ""))
	doc.Touch(now)
	if err := s.store.Documents.Update(ctx, *doc); err != nil {
		return nil, fmt.Errorf("failed to submit document: %w", err)
	}
	s.emit(ctx, actor, doc, "document.submitted", string(domain.DocDraft), "")
	return doc, nil
}

// Approve records one signature. The last required signature makes the
// document APPROVED and archives the previously APPROVED revision.
func (s *DocumentService) Approve(ctx context.Context, actor *domain.User, id, comment string) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc, err := s.approve(ctx, actor, id, strings.TrimSpace(comment))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if doc.Status == domain.DocApproved && s.autoAssign && s.training != nil && !blank(doc.Department) {
		if _, err := s.training.AssignForDocument(ctx, actor, doc); err != nil {
			s.logger.Warn("Failed to auto-assign training", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

func (s *DocumentService) approve(ctx context.Context, actor *domain.User, id, comment string) (*domain.Document, error) {
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocPendingApproval {
		return nil, transitionErr("document", id, string(doc.Status), "approve")
	}
	if !doc.IsApprover(actor.ID) {
		return nil, forbiddenErr("user is not an approver of this document")
	}
	if doc.HasSigned(actor.ID) {
		return nil, fmt.Errorf("%w: user %s already signed", domain.ErrConflict, actor.ID)
	}

	now := s.now()
	doc.Approvals = append(doc.Approvals, domain.Approval{UserID: actor.ID, SignedAt: now, Comment: comment})
	doc.History = append(doc.History, historyEntry(now, actor, "signed", "", "", comment))

	var superseded []domain.Document
	if doc.FullySigned() {
		doc.Status = domain.DocApproved
		if doc.EffectiveDate == nil {
			doc.EffectiveDate = timePtr(now)
		}
		doc.History = append(doc.History, historyEntry(now, actor, "approved", string(domain.DocPendingApproval), string(domain.DocApproved), ""))

		all, err := s.store.Documents.All(ctx)
		if err != nil {
			return nil, err
		}
		for _, other := range all {
			if other.ID == doc.ID || other.Status != domain.DocApproved || !strings.EqualFold(other.DocNumber, doc.DocNumber) {
				continue
			}
			other.Status = domain.DocArchived
			other.History = append(other.History, historyEntry(now, actor, "superseded", string(domain.DocApproved), string(domain.DocArchived),
				fmt.Sprintf("superseded by version %d", doc.Version)))
			other.Touch(now)
			superseded = append(superseded, other)
		}
	}
	doc.Touch(now)
	// the approval and the archiving of superseded revisions land together
	if err := s.store.Documents.UpdateAll(ctx, append(superseded, *doc)); err != nil {
		return nil, fmt.Errorf("failed to approve document: %w", err)
	}
	for i := range superseded {
		s.emit(ctx, actor, &superseded[i], "document.archived", string(domain.DocApproved), "superseded")
	}

	if doc.Status == domain.DocApproved {
		s.logger.Info("Document approved",
			zap.String("document_id", doc.ID),
			zap.String("doc_number", doc.DocNumber),
			zap.Int("version", doc.Version),
		)
		s.emit(ctx, actor, doc, "document.approved", string(domain.DocPendingApproval), comment)
	} else {
		s.emit(ctx, actor, doc, "document.signed", "", comment)
	}
	return doc, nil
}

// Reject returns a pending document to its author; signatures are cleared.
func (s *DocumentService) Reject(ctx context.Context, actor *domain.User, id, reason string) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("rejection reason is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocPendingApproval {
		return nil, transitionErr("document", id, string(doc.Status), "reject")
	}
	if !doc.IsApprover(actor.ID) {
		return nil, forbiddenErr("user is not an approver of this document")
	}
	now := s.now()
	doc.Status = domain.DocRejected
	doc.RejectionReason = reason
	doc.Approvals = nil
	doc.History = append(doc.History, historyEntry(now, actor, "rejected", string(domain.DocPendingApproval), string(doc.Status), reason))
	doc.Touch(now)
	if err := s.store.Documents.Update(ctx, *doc); err != nil {
		return nil, fmt.Errorf("failed to reject document: %w", err)
	}
	s.emit(ctx, actor, doc, "document.rejected", string(domain.DocPendingApproval), reason)
	return doc, nil
}

// Revise starts a new DRAFT revision of an APPROVED document. The approved
// revision stays in force until the new one is approved.
func (s *DocumentService) Revise(ctx context.Context, actor *domain.User, id string) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != domain.DocApproved {
		return nil, transitionErr("document", id, string(cur.Status), "revise")
	}
	if cur.AuthorID != actor.ID && !actor.HasRole(docEditors...) {
		return nil, forbiddenErr("only the author or DOC_CONTROLLER can revise this document")
	}
	all, err := s.store.Documents.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if !strings.EqualFold(d.DocNumber, cur.DocNumber) {
			continue
		}
		switch d.Status {
		case domain.DocDraft, domain.DocPendingApproval, domain.DocRejected:
			return nil, fmt.Errorf("%w: revision %d of %s is already open", domain.ErrConflict, d.Version, d.DocNumber)
		}
	}

	now := s.now()
	rev := domain.Document{
		Meta:              domain.Meta{ID: newID()},
		DocNumber:         cur.DocNumber,
		Title:             cur.Title,
		DocType:           cur.DocType,
		Department:        cur.Department,
		Version:           cur.Version + 1,
		Status:            domain.DocDraft,
		Content:           cur.Content,
		AuthorID:          actor.ID,
		ApproverIDs:       append([]string(nil), cur.ApproverIDs...),
		PreviousVersionID: cur.ID,
	}
	// the author of a revision cannot sign it
	rev.ApproverIDs = removeID(rev.ApproverIDs, actor.ID)
	rev.History = []domain.HistoryEntry{historyEntry(now, actor, "revised", "", string(domain.DocDraft),
		fmt.Sprintf("revision of version %d", cur.Version))}
	rev.Touch(now)
	if err := s.store.Documents.Create(ctx, rev); err != nil {
		return nil, fmt.Errorf("failed to create revision: %w", err)
	}
	s.emit(ctx, actor, &rev, "document.revised", "", "")
	return &rev, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Archive obsoletes an APPROVED document.
func (s *DocumentService) Archive(ctx context.Context, actor *domain.User, id, reason string) (*domain.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(docEditors...) {
		return nil, forbiddenErr("only ADMIN or DOC_CONTROLLER can archive documents")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocApproved {
		return nil, transitionErr("document", id, string(doc.Status), "archive")
	}
	now := s.now()
	doc.Status = domain.DocArchived
	doc.History = append(doc.History, historyEntry(now, actor, "archived", string(domain.DocApproved), string(doc.Status), strings.TrimSpace(reason)))
	doc.Touch(now)
	if err := s.store.Documents.Update(ctx, *doc); err != nil {
		return nil, fmt.Errorf("failed to archive document: %w", err)
	}
	s.emit(ctx, actor, doc, "document.archived", string(domain.DocApproved), reason)
	return doc, nil
}

// Delete removes a DRAFT that was never approved.
func (s *DocumentService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canEdit(actor, doc); err != nil {
		return err
	}
	if doc.Status != domain.DocDraft {
		return transitionErr("document", id, string(doc.Status), "delete")
	}
	return s.store.Documents.Delete(ctx, id)
}

// History every revision of a document number, newest version first.
func (s *DocumentService) History(ctx context.Context, docNumber string) ([]domain.Document, error) {
	docNumber = strings.TrimSpace(docNumber)
	if docNumber == "" {
		return nil, validationErr("docNumber is required")
	}
	all, err := s.store.Documents.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Document{}
	for _, d := range all {
		if strings.EqualFold(d.DocNumber, docNumber) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, docNumber)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// DiffChunk one diff operation
type DiffChunk struct {
	Op   string `json:"op"` // equal | insert | delete
	Text string `json:"text"`
}

// DocumentDiff content changes between a revision and its previous version
type DocumentDiff struct {
	DocumentID  string      `json:"documentId"`
	PreviousID  string      `json:"previousId"`
	FromVersion int         `json:"fromVersion"`
	ToVersion   int         `json:"toVersion"`
	Chunks      []DiffChunk `json:"chunks"`
	Patch       string      `json:"patch"`
	Inserted    int         `json:"inserted"`
	Deleted     int         `json:"deleted"`
}

func (s *DocumentService) Diff(ctx context.Context, id string) (*DocumentDiff, error) {
	doc, err := s.store.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.PreviousVersionID == "" {
		return nil, validationErr("document %s has no previous version", id)
	}
	prev, err := s.store.Documents.Get(ctx, doc.PreviousVersionID)
	if err != nil {
		return nil, err
	}
	return diffContent(prev, doc), nil
}

func diffContent(prev, doc *domain.Document) *DocumentDiff {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(prev.Content, doc.Content, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patchText := dmp.PatchToText(dmp.PatchMake(prev.Content, diffs))

	out := &DocumentDiff{
		DocumentID:  doc.ID,
		PreviousID:  prev.ID,
		FromVersion: prev.Version,
		ToVersion:   doc.Version,
		Chunks:      make([]DiffChunk, 0, len(diffs)),
		Patch:       patchText,
	}
	for _, d := range diffs {
		var op string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "insert"
			out.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			op = "delete"
			out.Deleted += len([]rune(d.Text))
		default:
			op = "equal"
		}
		out.Chunks = append(out.Chunks, DiffChunk{Op: op, Text: d.Text})
	}
	return out
}

func (s *DocumentService) emit(ctx context.Context, actor *domain.User, doc *domain.Document, typ, from, comment string) {
	s.publish(ctx, events.Event{
		Type:       typ,
		Collection: repository.CollectionDocuments,
		RecordID:   doc.ID,
		Number:     fmt.Sprintf("%s v%d", doc.DocNumber, doc.Version),
		ActorID:    actorID(actor),
		From:       from,
		To:         string(doc.Status),
		Comment:    comment,
	})
}
