package service

import (
	"context"
	"fmt"
	"strings"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"
)

// TicketService shop-floor QA tickets
type TicketService struct {
	base
	ncrs *NCRService
}

func NewTicketService(d Deps, ncrs *NCRService) *TicketService {
	s := &TicketService{ncrs: ncrs}
	s.init(d)
	return s
}

var ticketHandlers = []domain.Role{domain.RoleQAManager, domain.RoleQAInspector}

// CreateTicketRequest raise payload
type CreateTicketRequest struct {
	JobNumber  string          `json:"jobNumber"`
	CustomerID string          `json:"customerId,omitempty"`
	ItemID     string          `json:"itemId,omitempty"`
	Machine    string          `json:"machine,omitempty"`
	Issue      string          `json:"issue"`
	Priority   domain.Priority `json:"priority"`
}

func (s *TicketService) List(ctx context.Context, req ListRequest) (*Page[domain.QATicket], error) {
	return listPage(ctx, s.store.Tickets, req)
}

func (s *TicketService) Get(ctx context.Context, id string) (*domain.QATicket, error) {
	return s.store.Tickets.Get(ctx, id)
}

func (s *TicketService) Create(ctx context.Context, actor *domain.User, req CreateTicketRequest) (*domain.QATicket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.JobNumber, req.Issue = strings.TrimSpace(req.JobNumber), strings.TrimSpace(req.Issue)
	if req.JobNumber == "" {
		return nil, validationErr("jobNumber is required")
	}
	if req.Issue == "" {
		return nil, validationErr("issue is required")
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, validationErr("invalid priority %q", req.Priority)
	}
	if req.CustomerID != "" {
		if _, err := s.store.Customers.Get(ctx, req.CustomerID); err != nil {
			return nil, validationErr("customer %s does not exist", req.CustomerID)
		}
	}
	if req.ItemID != "" {
		if _, err := s.store.Items.Get(ctx, req.ItemID); err != nil {
			return nil, validationErr("item %s does not exist", req.ItemID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	number, err := nextNumber(ctx, &s.base, s.store.Tickets, "QT", func(t domain.QATicket) string { return t.TicketNumber })
	if err != nil {
		return nil, err
	}
	now := s.now()
	t := domain.QATicket{
		Meta:         domain.Meta{ID: newID()},
		TicketNumber: number,
		JobNumber:    req.JobNumber,
		CustomerID:   req.CustomerID,
		ItemID:       req.ItemID,
		Machine:      strings.TrimSpace(req.Machine),
		Issue:        req.Issue,
		Priority:     req.Priority,
		RaisedBy:     actor.ID,
		Status:       domain.TicketOpen,
	}
	t.History = []domain.HistoryEntry{historyEntry(now, actor, "raised", "", string(t.Status), "")}
	t.Touch(now)
	if err := s.store.Tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	s.emit(ctx, actor, &t, "ticket.raised", "", "")
	return &t, nil
}

// Assign OPEN -> IN_PROGRESS
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, id, assigneeID string) (*domain.QATicket, error) {
	if _, err := s.store.Users.Get(ctx, assigneeID); err != nil {
		return nil, validationErr("assignee %s does not exist", assigneeID)
	}
	return s.move(ctx, actor, id, domain.TicketOpen, domain.TicketInProgress, "assign", func(t *domain.QATicket) error {
		t.AssignedTo = assigneeID
		return nil
	}, assigneeID)
}

// Resolve IN_PROGRESS -> RESOLVED
func (s *TicketService) Resolve(ctx context.Context, actor *domain.User, id, resolution string) (*domain.QATicket, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, validationErr("resolution is required")
	}
	return s.move(ctx, actor, id, domain.TicketInProgress, domain.TicketResolved, "resolve", func(t *domain.QATicket) error {
		t.Resolution = resolution
		return nil
	}, "")
}

// Close RESOLVED -> CLOSED
func (s *TicketService) Close(ctx context.Context, actor *domain.User, id string) (*domain.QATicket, error) {
	return s.move(ctx, actor, id, domain.TicketResolved, domain.TicketClosed, "close", nil, "")
}

// Escalate raises an NCR for the ticket; the NCR service marks it ESCALATED.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.User, id string, quantity int, description string) (*domain.NCRRecord, error) {
	t, err := s.store.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if blank(description) {
		description = fmt.Sprintf("QA ticket %s: %s", t.TicketNumber, t.Issue)
	}
	return s.ncrs.Create(ctx, actor, CreateNCRRequest{
		TicketID:         t.ID,
		JobNumber:        t.JobNumber,
		ItemID:           t.ItemID,
		Description:      description,
		QuantityAffected: quantity,
	})
}

func (s *TicketService) move(ctx context.Context, actor *domain.User, id string, from, to domain.TicketStatus, verb string, apply func(*domain.QATicket) error, comment string) (*domain.QATicket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(ticketHandlers...) {
		return nil, forbiddenErr("only QA staff can " + verb + " tickets")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.store.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != from {
		return nil, transitionErr("ticket", t.TicketNumber, string(t.Status), verb)
	}
	if apply != nil {
		if err := apply(t); err != nil {
			return nil, err
		}
	}
	now := s.now()
	t.Status = to
	t.History = append(t.History, historyEntry(now, actor, verb, string(from), string(to), comment))
	t.Touch(now)
	if err := s.store.Tickets.Update(ctx, *t); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	s.emit(ctx, actor, t, "ticket."+strings.ToLower(string(to)), string(from), comment)
	return t, nil
}

func (s *TicketService) emit(ctx context.Context, actor *domain.User, t *domain.QATicket, typ, from, comment string) {
	s.publish(ctx, events.Event{
		Type:       typ,
		Collection: repository.CollectionTickets,
		RecordID:   t.ID,
		Number:     t.TicketNumber,
		ActorID:    actorID(actor),
		From:       from,
		To:         string(t.Status),
		Comment:    comment,
	})
}
