package service

import (
	"context"
	"fmt"
	"strings"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"

	"go.uber.org/zap"
)

// NCRService non-conformance records and their disposition approval
type NCRService struct {
	base
}

func NewNCRService(d Deps) *NCRService {
	s := &NCRService{}
	s.init(d)
	return s
}

var (
	ncrDisposers = []domain.Role{domain.RoleQAManager, domain.RoleQAInspector}
	ncrApprovers = []domain.Role{domain.RoleQAManager}
)

// CreateNCRRequest raise payload
type CreateNCRRequest struct {
	TicketID         string `json:"ticketId,omitempty"`
	ComplaintID      string `json:"complaintId,omitempty"`
	JobNumber        string `json:"jobNumber,omitempty"`
	ItemID           string `json:"itemId,omitempty"`
	SupplierID       string `json:"supplierId,omitempty"`
	Description      string `json:"description"`
	QuantityAffected int    `json:"quantityAffected"`
}

func (s *NCRService) List(ctx context.Context, req ListRequest) (*Page[domain.NCRRecord], error) {
	return listPage(ctx, s.store.NCRs, req)
}

func (s *NCRService) Get(ctx context.Context, id string) (*domain.NCRRecord, error) {
	return s.store.NCRs.Get(ctx, id)
}

// Create raises an NCR. A referenced ticket is escalated and a referenced
// complaint is linked to the new record.
func (s *NCRService) Create(ctx context.Context, actor *domain.User, req CreateNCRRequest) (*domain.NCRRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, validationErr("description is required")
	}
	if req.QuantityAffected <= 0 {
		return nil, validationErr("quantityAffected must be greater than 0")
	}
	if req.ItemID != "" {
		if _, err := s.store.Items.Get(ctx, req.ItemID); err != nil {
			return nil, validationErr("item %s does not exist", req.ItemID)
		}
	}
	if req.SupplierID != "" {
		if _, err := s.store.Suppliers.Get(ctx, req.SupplierID); err != nil {
			return nil, validationErr("supplier %s does not exist", req.SupplierID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ticket *domain.QATicket
	if req.TicketID != "" {
		t, err := s.store.Tickets.Get(ctx, req.TicketID)
		if err != nil {
			return nil, validationErr("ticket %s does not exist", req.TicketID)
		}
		if t.NCRID != "" {
			return nil, fmt.Errorf("%w: ticket %s already escalated to an NCR", domain.ErrConflict, t.TicketNumber)
		}
		if t.Status == domain.TicketClosed {
			return nil, transitionErr("ticket", t.ID, string(t.Status), "escalate")
		}
		ticket = t
		if req.JobNumber == "" {
			req.JobNumber = t.JobNumber
		}
		if req.ItemID == "" {
			req.ItemID = t.ItemID
		}
	}
	var complaint *domain.CustomerComplaint
	if req.ComplaintID != "" {
		c, err := s.store.Complaints.Get(ctx, req.ComplaintID)
		if err != nil {
			return nil, validationErr("complaint %s does not exist", req.ComplaintID)
		}
		if c.NCRID != "" {
			return nil, fmt.Errorf("%w: complaint %s already linked to an NCR", domain.ErrConflict, c.ComplaintNumber)
		}
		complaint = c
		if req.JobNumber == "" {
			req.JobNumber = c.JobNumber
		}
		if req.ItemID == "" {
			req.ItemID = c.ItemID
		}
	}

	number, err := nextNumber(ctx, &s.base, s.store.NCRs, "NCR", func(n domain.NCRRecord) string { return n.NCRNumber })
	if err != nil {
		return nil, err
	}
	now := s.now()
	ncr := domain.NCRRecord{
		Meta:             domain.Meta{ID: newID()},
		NCRNumber:        number,
		TicketID:         req.TicketID,
		ComplaintID:      req.ComplaintID,
		JobNumber:        strings.TrimSpace(req.JobNumber),
		ItemID:           req.ItemID,
		SupplierID:       req.SupplierID,
		Description:      req.Description,
		QuantityAffected: req.QuantityAffected,
		RaisedBy:         actor.ID,
		Status:           domain.NCROpen,
	}
	ncr.History = []domain.HistoryEntry{historyEntry(now, actor, "raised", "", string(domain.NCROpen), "")}
	ncr.Touch(now)
	if err := s.store.NCRs.Create(ctx, ncr); err != nil {
		return nil, fmt.Errorf("failed to create NCR: %w", err)
	}

	if ticket != nil {
		from := ticket.Status
		ticket.Status = domain.TicketEscalated
		ticket.NCRID = ncr.ID
		ticket.History = append(ticket.History, historyEntry(now, actor, "escalated", string(from), string(ticket.Status), ncr.NCRNumber))
		ticket.Touch(now)
		if err := s.store.Tickets.Update(ctx, *ticket); err != nil {
			return nil, fmt.Errorf("failed to escalate ticket: %w", err)
		}
		s.publish(ctx, events.Event{
			Type: "ticket.escalated", Collection: repository.CollectionTickets, RecordID: ticket.ID,
			Number: ticket.TicketNumber, ActorID: actor.ID, From: string(from), To: string(ticket.Status), Comment: ncr.NCRNumber,
		})
	}
	if complaint != nil {
		complaint.NCRID = ncr.ID
		complaint.History = append(complaint.History, historyEntry(now, actor, "ncr-raised", "", "", ncr.NCRNumber))
		complaint.Touch(now)
		if err := s.store.Complaints.Update(ctx, *complaint); err != nil {
			return nil, fmt.Errorf("failed to link complaint: %w", err)
		}
	}

	s.logger.Info("NCR raised", zap.String("ncr_id", ncr.ID), zap.String("ncr_number", ncr.NCRNumber))
	s.emit(ctx, actor, &ncr, "ncr.raised", "", "")
	return &ncr, nil
}

// SubmitDisposition proposes the disposition of an OPEN NCR. Every disposition
// field is required; an incomplete disposition leaves the record untouched.
func (s *NCRService) SubmitDisposition(ctx context.Context, actor *domain.User, id string, d domain.Disposition) (*domain.NCRRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(ncrDisposers...) {
		return nil, forbiddenErr("only QA staff can disposition an NCR")
	}
	if missing := d.MissingFields(); len(missing) > 0 {
		return nil, validationErr("disposition incomplete, missing: %s", strings.Join(missing, ", "))
	}
	if !d.Decision.Valid() {
		return nil, validationErr("invalid disposition decision %q", d.Decision)
	}
	if _, err := s.store.Users.Get(ctx, d.ResponsibleID); err != nil {
		return nil, validationErr("responsible user %s does not exist", d.ResponsibleID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ncr, err := s.store.NCRs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ncr.Status != domain.NCROpen {
		return nil, transitionErr("NCR", ncr.NCRNumber, string(ncr.Status), "submit disposition")
	}
	now := s.now()
	d.RootCause = strings.TrimSpace(d.RootCause)
	d.CorrectiveAction = strings.TrimSpace(d.CorrectiveAction)
	d.PreventiveAction = strings.TrimSpace(d.PreventiveAction)
	ncr.Disposition = &d
	ncr.DispositionedBy = actor.ID
	ncr.RejectionReason = ""
	ncr.Status = domain.NCRPendingApproval
	ncr.History = append(ncr.History, historyEntry(now, actor, "disposition-submitted", string(domain.NCROpen), string(ncr.Status), string(d.Decision)))
	ncr.Touch(now)
	if err := s.store.NCRs.Update(ctx, *ncr); err != nil {
		return nil, fmt.Errorf("failed to submit disposition: %w", err)
	}
	s.emit(ctx, actor, ncr, "ncr.disposition_submitted", string(domain.NCROpen), string(d.Decision))
	return ncr, nil
}

// ApproveDisposition needs a QA_MANAGER other than the person who proposed it.
func (s *NCRService) ApproveDisposition(ctx context.Context, actor *domain.User, id string) (*domain.NCRRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(ncrApprovers...) {
		return nil, forbiddenErr("only QA_MANAGER can approve a disposition")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ncr, err := s.store.NCRs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ncr.Status != domain.NCRPendingApproval {
		return nil, transitionErr("NCR", ncr.NCRNumber, string(ncr.Status), "approve disposition")
	}
	if ncr.DispositionedBy == actor.ID {
		return nil, forbiddenErr("the disposition must be approved by someone else")
	}
	now := s.now()
	ncr.Status = domain.NCRDispositioned
	ncr.ApprovedBy = actor.ID
	ncr.History = append(ncr.History, historyEntry(now, actor, "disposition-approved", string(domain.NCRPendingApproval), string(ncr.Status), ""))
	ncr.Touch(now)
	if err := s.store.NCRs.Update(ctx, *ncr); err != nil {
		return nil, fmt.Errorf("failed to approve disposition: %w", err)
	}
	s.emit(ctx, actor, ncr, "ncr.dispositioned", string(domain.NCRPendingApproval), "")
	return ncr, nil
}

// RejectDisposition sends the NCR back to OPEN; the proposal is kept for editing.
func (s *NCRService) RejectDisposition(ctx context.Context, actor *domain.User, id, reason string) (*domain.NCRRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(ncrApprovers...) {
		return nil, forbiddenErr("only QA_MANAGER can reject a disposition")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("rejection reason is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ncr, err := s.store.NCRs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ncr.Status != domain.NCRPendingApproval {
		return nil, transitionErr("NCR", ncr.NCRNumber, string(ncr.Status), "reject disposition")
	}
	now := s.now()
	ncr.Status = domain.NCROpen
	ncr.RejectionReason = reason
	ncr.History = append(ncr.History, historyEntry(now, actor, "disposition-rejected", string(domain.NCRPendingApproval), string(ncr.Status), reason))
	ncr.Touch(now)
	if err := s.store.NCRs.Update(ctx, *ncr); err != nil {
		return nil, fmt.Errorf("failed to reject disposition: %w", err)
	}
	s.emit(ctx, actor, ncr, "ncr.disposition_rejected", string(domain.NCRPendingApproval), reason)
	return ncr, nil
}

func (s *NCRService) Close(ctx context.Context, actor *domain.User, id string) (*domain.NCRRecord, error) {
	return s.move(ctx, actor, id, domain.NCRDispositioned, domain.NCRClosed, "close", "closed", "")
}

// Reopen returns a CLOSED NCR to OPEN.
func (s *NCRService) Reopen(ctx context.Context, actor *domain.User, id, reason string) (*domain.NCRRecord, error) {
	if blank(reason) {
		return nil, validationErr("reopen reason is required")
	}
	return s.move(ctx, actor, id, domain.NCRClosed, domain.NCROpen, "reopen", "reopened", strings.TrimSpace(reason))
}

func (s *NCRService) move(ctx context.Context, actor *domain.User, id string, from, to domain.NCRStatus, verb, action, comment string) (*domain.NCRRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(ncrApprovers...) {
		return nil, forbiddenErr("only QA_MANAGER can " + verb + " an NCR")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ncr, err := s.store.NCRs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ncr.Status != from {
		return nil, transitionErr("NCR", ncr.NCRNumber, string(ncr.Status), verb)
	}
	now := s.now()
	ncr.Status = to
	if to == domain.NCRClosed {
		ncr.ClosedAt = timePtr(now)
	} else {
		ncr.ClosedAt = nil
	}
	ncr.History = append(ncr.History, historyEntry(now, actor, action, string(from), string(to), comment))
	ncr.Touch(now)
	if err := s.store.NCRs.Update(ctx, *ncr); err != nil {
		return nil, fmt.Errorf("failed to update NCR: %w", err)
	}
	s.emit(ctx, actor, ncr, "ncr."+action, string(from), comment)
	return ncr, nil
}

func (s *NCRService) emit(ctx context.Context, actor *domain.User, ncr *domain.NCRRecord, typ, from, comment string) {
	s.publish(ctx, events.Event{
		Type:       typ,
		Collection: repository.CollectionNCRs,
		RecordID:   ncr.ID,
		Number:     ncr.NCRNumber,
		ActorID:    actorID(actor),
		From:       from,
		To:         string(ncr.Status),
		Comment:    comment,
	})
}
