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

// InspectionService QA inspections and certificates of analysis
type InspectionService struct {
	base
}

func NewInspectionService(d Deps) *InspectionService {
	s := &InspectionService{}
	s.init(d)
	return s
}

var inspectors = []domain.Role{domain.RoleQAInspector, domain.RoleQAManager}

// InspectionRequest record payload; Result is computed.
type InspectionRequest struct {
	JobNumber  string                   `json:"jobNumber"`
	CustomerID string                   `json:"customerId,omitempty"`
	ItemID     string                   `json:"itemId,omitempty"`
	Date       *time.Time               `json:"date,omitempty"`
	LotSize    int                      `json:"lotSize"`
	SampleSize int                      `json:"sampleSize"`
	Checks     []domain.InspectionCheck `json:"checks"`
	Remarks    string                   `json:"remarks,omitempty"`
}

func (s *InspectionService) List(ctx context.Context, req ListRequest) (*Page[domain.QAInspection], error) {
	return listPage(ctx, s.store.Inspections, req)
}

func (s *InspectionService) Get(ctx context.Context, id string) (*domain.QAInspection, error) {
	return s.store.Inspections.Get(ctx, id)
}

// Record stores an inspection with its computed PASS/FAIL result.
func (s *InspectionService) Record(ctx context.Context, actor *domain.User, req InspectionRequest) (*domain.QAInspection, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(inspectors...) {
		return nil, forbiddenErr("only QA_INSPECTOR can record inspections")
	}
	req.JobNumber = strings.TrimSpace(req.JobNumber)
	if req.JobNumber == "" {
		return nil, validationErr("jobNumber is required")
	}
	if req.LotSize < 0 || req.SampleSize < 0 {
		return nil, validationErr("lotSize and sampleSize cannot be negative")
	}
	if req.LotSize > 0 && req.SampleSize > req.LotSize {
		return nil, validationErr("sampleSize cannot exceed lotSize")
	}
	for i, c := range req.Checks {
		if blank(c.Parameter) {
			return nil, validationErr("check %d: parameter is required", i+1)
		}
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

	now := s.now()
	q := domain.QAInspection{
		Meta:        domain.Meta{ID: newID()},
		JobNumber:   req.JobNumber,
		CustomerID:  req.CustomerID,
		ItemID:      req.ItemID,
		InspectorID: actor.ID,
		Date:        now,
		LotSize:     req.LotSize,
		SampleSize:  req.SampleSize,
		Checks:      req.Checks,
		Remarks:     strings.TrimSpace(req.Remarks),
	}
	if q.Checks == nil {
		q.Checks = []domain.InspectionCheck{}
	}
	if req.Date != nil && !req.Date.IsZero() {
		q.Date = *req.Date
	}
	q.Result = q.Evaluate()
	q.Touch(now)
	if err := s.store.Inspections.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to record inspection: %w", err)
	}
	s.publish(ctx, events.Event{
		Type: "inspection.recorded", Collection: repository.CollectionInspections,
		RecordID: q.ID, ActorID: actor.ID, To: string(q.Result),
	})
	return &q, nil
}

// COA returns the certificate for a PASS inspection, allocating its number on
// first request.
func (s *InspectionService) COA(ctx context.Context, actor *domain.User, id string) (*domain.CertificateOfAnalysis, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.store.Inspections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Result != domain.InspectionPass {
		return nil, transitionErr("inspection", id, string(q.Result), "issue a certificate of analysis")
	}
	now := s.now()
	if q.COANumber == "" {
		number, err := nextNumber(ctx, &s.base, s.store.Inspections, "COA", func(i domain.QAInspection) string { return i.COANumber })
		if err != nil {
			return nil, err
		}
		q.COANumber = number
		q.Touch(now)
		if err := s.store.Inspections.Update(ctx, *q); err != nil {
			return nil, fmt.Errorf("failed to allocate COA number: %w", err)
		}
		s.publish(ctx, events.Event{
			Type: "inspection.coa_issued", Collection: repository.CollectionInspections,
			RecordID: q.ID, Number: number, ActorID: actor.ID, To: string(q.Result),
		})
	}

	coa := &domain.CertificateOfAnalysis{
		COANumber:    q.COANumber,
		IssuedAt:     q.UpdatedAt,
		JobNumber:    q.JobNumber,
		Inspector:    q.InspectorID,
		InspectedOn:  q.Date,
		LotSize:      q.LotSize,
		SampleSize:   q.SampleSize,
		Checks:       q.Checks,
		Conclusion:   fmt.Sprintf("Lot conforms to specification: %d of %d checks passed", len(q.Checks), len(q.Checks)),
		InspectionID: q.ID,
	}
	if u, err := s.store.Users.Get(ctx, q.InspectorID); err == nil {
		coa.Inspector = u.Name
	}
	if q.CustomerID != "" {
		if c, err := s.store.Customers.Get(ctx, q.CustomerID); err == nil {
			coa.Customer = c
		}
	}
	if q.ItemID != "" {
		if item, err := s.store.Items.Get(ctx, q.ItemID); err == nil {
			coa.Item = item
		}
	}
	return coa, nil
}
