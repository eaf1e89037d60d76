package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"
)

// ComplaintService customer complaint lifecycle
type ComplaintService struct {
	base
	ncrs *NCRService
}

func NewComplaintService(d Deps, ncrs *NCRService) *ComplaintService {
	s := &ComplaintService{ncrs: ncrs}
	s.init(d)
	return s
}

var (
	complaintIntake   = []domain.Role{domain.RoleQAManager, domain.RoleQAInspector, domain.RoleSales}
	complaintHandlers = []domain.Role{domain.RoleQAManager, domain.RoleQAInspector}
	complaintOwners   = []domain.Role{domain.RoleQAManager}
)

// CreateComplaintRequest intake payload
type CreateComplaintRequest struct {
	CustomerID   string          `json:"customerId"`
	ItemID       string          `json:"itemId,omitempty"`
	JobNumber    string          `json:"jobNumber,omitempty"`
	ReceivedDate *time.Time      `json:"receivedDate,omitempty"`
	Description  string          `json:"description"`
	Severity     domain.Severity `json:"severity"`
}

// InvestigationRequest investigation findings
type InvestigationRequest struct {
	Investigation string `json:"investigation"`
	RootCause     string `json:"rootCause"`
}

func (s *ComplaintService) List(ctx context.Context, req ListRequest) (*Page[domain.CustomerComplaint], error) {
	return listPage(ctx, s.store.Complaints, req)
}

func (s *ComplaintService) Get(ctx context.Context, id string) (*domain.CustomerComplaint, error) {
	return s.store.Complaints.Get(ctx, id)
}

func (s *ComplaintService) Create(ctx context.Context, actor *domain.User, req CreateComplaintRequest) (*domain.CustomerComplaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(complaintIntake...) {
		return nil, forbiddenErr("not allowed to log complaints")
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, validationErr("description is required")
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityMedium
	}
	if !req.Severity.Valid() {
		return nil, validationErr("invalid severity %q", req.Severity)
	}
	if _, err := s.store.Customers.Get(ctx, req.CustomerID); err != nil {
		return nil, validationErr("customer %s does not exist", req.CustomerID)
	}
	if req.ItemID != "" {
		if _, err := s.store.Items.Get(ctx, req.ItemID); err != nil {
			return nil, validationErr("item %s does not exist", req.ItemID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	number, err := nextNumber(ctx, &s.base, s.store.Complaints, "CC", func(c domain.CustomerComplaint) string { return c.ComplaintNumber })
	if err != nil {
		return nil, err
	}
	now := s.now()
	received := now
	if req.ReceivedDate != nil && !req.ReceivedDate.IsZero() {
		received = *req.ReceivedDate
	}
	c := domain.CustomerComplaint{
		Meta:            domain.Meta{ID: newID()},
		ComplaintNumber: number,
		CustomerID:      req.CustomerID,
		ItemID:          req.ItemID,
		JobNumber:       strings.TrimSpace(req.JobNumber),
		ReceivedDate:    received,
		Description:     req.Description,
		Severity:        req.Severity,
		Status:          domain.ComplaintNew,
	}
	c.History = []domain.HistoryEntry{historyEntry(now, actor, "received", "", string(c.Status), "")}
	c.Touch(now)
	if err := s.store.Complaints.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}
	s.emit(ctx, actor, &c, "complaint.received", "", "")
	return &c, nil
}

// complaintStep mutates a complaint that is in one of from.
type complaintStep struct {
	roles  []domain.Role
	from   []domain.ComplaintStatus
	to     domain.ComplaintStatus
	verb   string
	action string
	apply  func(c *domain.CustomerComplaint) error
}

func (s *ComplaintService) step(ctx context.Context, actor *domain.User, id string, st complaintStep, comment string) (*domain.CustomerComplaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(st.roles...) {
		return nil, forbiddenErr("not allowed to " + st.verb + " complaints")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.store.Complaints.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range st.from {
		if c.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, transitionErr("complaint", c.ComplaintNumber, string(c.Status), st.verb)
	}
	if st.apply != nil {
		if err := st.apply(c); err != nil {
			return nil, err
		}
	}
	now := s.now()
	from := c.Status
	if st.to != "" {
		c.Status = st.to
	}
	switch c.Status {
	case domain.ComplaintClosed:
		c.ClosedAt = timePtr(now)
	case domain.ComplaintInvestigating:
		c.ClosedAt = nil
	}
	c.History = append(c.History, historyEntry(now, actor, st.action, string(from), string(c.Status), comment))
	c.Touch(now)
	if err := s.store.Complaints.Update(ctx, *c); err != nil {
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}
	s.emit(ctx, actor, c, "complaint."+st.action, string(from), comment)
	return c, nil
}

func (s *ComplaintService) StartInvestigation(ctx context.Context, actor *domain.User, id string) (*domain.CustomerComplaint, error) {
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintHandlers, from: []domain.ComplaintStatus{domain.ComplaintNew},
		to: domain.ComplaintInvestigating, verb: "investigate", action: "investigating",
	}, "")
}

// RecordInvestigation saves findings without changing status.
func (s *ComplaintService) RecordInvestigation(ctx context.Context, actor *domain.User, id string, req InvestigationRequest) (*domain.CustomerComplaint, error) {
	if blank(req.Investigation) {
		return nil, validationErr("investigation is required")
	}
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintHandlers, from: []domain.ComplaintStatus{domain.ComplaintInvestigating},
		verb: "record investigation on", action: "investigation-recorded",
		apply: func(c *domain.CustomerComplaint) error {
			c.Investigation = strings.TrimSpace(req.Investigation)
			if !blank(req.RootCause) {
				c.RootCause = strings.TrimSpace(req.RootCause)
			}
			return nil
		},
	}, "")
}

func (s *ComplaintService) Respond(ctx context.Context, actor *domain.User, id, response string) (*domain.CustomerComplaint, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, validationErr("response is required")
	}
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintOwners, from: []domain.ComplaintStatus{domain.ComplaintInvestigating},
		to: domain.ComplaintResponded, verb: "respond to", action: "responded",
		apply: func(c *domain.CustomerComplaint) error {
			if blank(c.Investigation) {
				return validationErr("investigation must be recorded before responding")
			}
			c.Response = response
			return nil
		},
	}, "")
}

func (s *ComplaintService) Close(ctx context.Context, actor *domain.User, id string) (*domain.CustomerComplaint, error) {
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintOwners, from: []domain.ComplaintStatus{domain.ComplaintResponded},
		to: domain.ComplaintClosed, verb: "close", action: "closed",
	}, "")
}

func (s *ComplaintService) Reject(ctx context.Context, actor *domain.User, id, reason string) (*domain.CustomerComplaint, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("rejection reason is required")
	}
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintOwners, from: []domain.ComplaintStatus{domain.ComplaintNew, domain.ComplaintInvestigating},
		to: domain.ComplaintRejected, verb: "reject", action: "rejected",
		apply: func(c *domain.CustomerComplaint) error {
			c.RejectionReason = reason
			return nil
		},
	}, reason)
}

func (s *ComplaintService) Reopen(ctx context.Context, actor *domain.User, id, reason string) (*domain.CustomerComplaint, error) {
	return s.step(ctx, actor, id, complaintStep{
		roles: complaintOwners, from: []domain.ComplaintStatus{domain.ComplaintClosed, domain.ComplaintRejected},
		to: domain.ComplaintInvestigating, verb: "reopen", action: "reopened",
		apply: func(c *domain.CustomerComplaint) error {
			c.RejectionReason = ""
			return nil
		},
	}, strings.TrimSpace(reason))
}

// RaiseNCR opens an NCR for the complaint and links it.
func (s *ComplaintService) RaiseNCR(ctx context.Context, actor *domain.User, id string, quantity int, description string) (*domain.NCRRecord, error) {
	c, err := s.store.Complaints.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.ComplaintRejected {
		return nil, transitionErr("complaint", c.ComplaintNumber, string(c.Status), "raise an NCR for")
	}
	if blank(description) {
		description = fmt.Sprintf("Customer complaint %s: %s", c.ComplaintNumber, c.Description)
	}
	return s.ncrs.Create(ctx, actor, CreateNCRRequest{
		ComplaintID:      c.ID,
		JobNumber:        c.JobNumber,
		ItemID:           c.ItemID,
		Description:      description,
		QuantityAffected: quantity,
	})
}

// Notice builds the customer-facing complaint notice.
func (s *ComplaintService) Notice(ctx context.Context, id string) (*domain.ComplaintNotice, error) {
	c, err := s.store.Complaints.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n := &domain.ComplaintNotice{
		ComplaintNumber: c.ComplaintNumber,
		IssuedAt:        s.now(),
		JobNumber:       c.JobNumber,
		ReceivedDate:    c.ReceivedDate,
		Description:     c.Description,
		Investigation:   c.Investigation,
		RootCause:       c.RootCause,
		Response:        c.Response,
		Status:          c.Status,
	}
	if cust, err := s.store.Customers.Get(ctx, c.CustomerID); err == nil {
		n.CustomerName, n.ContactName, n.ContactEmail = cust.Name, cust.ContactName, cust.Email
	} else {
		n.CustomerName = c.CustomerID
	}
	if c.ItemID != "" {
		if item, err := s.store.Items.Get(ctx, c.ItemID); err == nil {
			n.ItemCode, n.ItemName = item.Code, item.Name
		}
	}
	if c.NCRID != "" {
		if ncr, err := s.store.NCRs.Get(ctx, c.NCRID); err == nil {
			n.NCRNumber = ncr.NCRNumber
		}
	}
	return n, nil
}

func (s *ComplaintService) emit(ctx context.Context, actor *domain.User, c *domain.CustomerComplaint, typ, from, comment string) {
	s.publish(ctx, events.Event{
		Type:       typ,
		Collection: repository.CollectionComplaints,
		RecordID:   c.ID,
		Number:     c.ComplaintNumber,
		ActorID:    actorID(actor),
		From:       from,
		To:         string(c.Status),
		Comment:    comment,
	})
}
