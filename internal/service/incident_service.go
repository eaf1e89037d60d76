package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"

	"go.uber.org/zap"
)

// IncidentService safety incident reporting and investigation
type IncidentService struct {
	base
}

func NewIncidentService(d Deps) *IncidentService {
	s := &IncidentService{}
	s.init(d)
	return s
}

var incidentInvestigators = []domain.Role{domain.RoleSafetyOfficer}

// IncidentRequest report payload; on update nil fields are left unchanged.
type IncidentRequest struct {
	Date             *time.Time           `json:"date,omitempty"`
	Location         *string              `json:"location,omitempty"`
	IncidentType     *domain.IncidentType `json:"incidentType,omitempty"`
	Severity         *domain.Severity     `json:"severity,omitempty"`
	Description      *string              `json:"description,omitempty"`
	InjuredPerson    *string              `json:"injuredPerson,omitempty"`
	ImmediateAction  *string              `json:"immediateAction,omitempty"`
	RootCause        *string              `json:"rootCause,omitempty"`
	CorrectiveAction *string              `json:"correctiveAction,omitempty"`
}

func (r IncidentRequest) apply(i *domain.SafetyIncident) {
	trim := func(p *string) string { return strings.TrimSpace(*p) }
	if r.Date != nil {
		i.Date = *r.Date
	}
	if r.Location != nil {
		i.Location = trim(r.Location)
	}
	if r.IncidentType != nil {
		i.IncidentType = *r.IncidentType
	}
	if r.Severity != nil {
		i.Severity = *r.Severity
	}
	if r.Description != nil {
		i.Description = trim(r.Description)
	}
	if r.InjuredPerson != nil {
		i.InjuredPerson = trim(r.InjuredPerson)
	}
	if r.ImmediateAction != nil {
		i.ImmediateAction = trim(r.ImmediateAction)
	}
	if r.RootCause != nil {
		i.RootCause = trim(r.RootCause)
	}
	if r.CorrectiveAction != nil {
		i.CorrectiveAction = trim(r.CorrectiveAction)
	}
}

func validateIncident(i *domain.SafetyIncident, now time.Time) error {
	switch {
	case i.Date.IsZero():
		return validationErr("date is required")
	case i.Date.After(now):
		return validationErr("incident date cannot be in the future")
	case i.Description == "":
		return validationErr("description is required")
	case i.Location == "":
		return validationErr("location is required")
	case !i.IncidentType.Valid():
		return validationErr("invalid incidentType %q", i.IncidentType)
	case !i.Severity.Valid():
		return validationErr("invalid severity %q", i.Severity)
	}
	return nil
}

func (s *IncidentService) List(ctx context.Context, req ListRequest) (*Page[domain.SafetyIncident], error) {
	return listPage(ctx, s.store.Incidents, req)
}

func (s *IncidentService) Get(ctx context.Context, id string) (*domain.SafetyIncident, error) {
	return s.store.Incidents.Get(ctx, id)
}

// Report any active user may report an incident.
func (s *IncidentService) Report(ctx context.Context, actor *domain.User, req IncidentRequest) (*domain.SafetyIncident, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := s.now()
	inc := domain.SafetyIncident{Meta: domain.Meta{ID: newID()}, ReportedBy: actor.ID, Status: domain.IncidentOpen}
	req.apply(&inc)
	if err := validateIncident(&inc, now); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	number, err := nextNumber(ctx, &s.base, s.store.Incidents, "SI", func(i domain.SafetyIncident) string { return i.IncidentNumber })
	if err != nil {
		return nil, err
	}
	inc.IncidentNumber = number
	inc.History = []domain.HistoryEntry{historyEntry(now, actor, "reported", "", string(inc.Status), "")}
	inc.Touch(now)
	if err := s.store.Incidents.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to report incident: %w", err)
	}
	s.logger.Info("Safety incident reported",
		zap.String("incident_number", inc.IncidentNumber),
		zap.String("severity", string(inc.Severity)),
	)
	s.emit(ctx, actor, &inc, "incident.reported", "", "")
	return &inc, nil
}

// Update edits descriptive fields until the incident is closed.
func (s *IncidentService) Update(ctx context.Context, actor *domain.User, id string, req IncidentRequest) (*domain.SafetyIncident, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, err := s.store.Incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.ReportedBy != actor.ID && !actor.HasRole(incidentInvestigators...) {
		return nil, forbiddenErr("only the reporter or SAFETY_OFFICER can edit this incident")
	}
	if inc.Status == domain.IncidentClosed {
		return nil, transitionErr("incident", inc.IncidentNumber, string(inc.Status), "edit")
	}
	now := s.now()
	req.apply(inc)
	if err := validateIncident(inc, now); err != nil {
		return nil, err
	}
	inc.History = append(inc.History, historyEntry(now, actor, "edited", "", "", ""))
	inc.Touch(now)
	if err := s.store.Incidents.Update(ctx, *inc); err != nil {
		return nil, fmt.Errorf("failed to update incident: %w", err)
	}
	return inc, nil
}

func (s *IncidentService) Investigate(ctx context.Context, actor *domain.User, id string) (*domain.SafetyIncident, error) {
	return s.move(ctx, actor, id, domain.IncidentOpen, domain.IncidentInvestigating, "investigate", IncidentRequest{})
}

// Close requires root cause and corrective action, either already recorded or
// supplied with the request.
func (s *IncidentService) Close(ctx context.Context, actor *domain.User, id string, req IncidentRequest) (*domain.SafetyIncident, error) {
	return s.move(ctx, actor, id, domain.IncidentInvestigating, domain.IncidentClosed, "close", req)
}

func (s *IncidentService) move(ctx context.Context, actor *domain.User, id string, from, to domain.IncidentStatus, verb string, req IncidentRequest) (*domain.SafetyIncident, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(incidentInvestigators...) {
		return nil, forbiddenErr("only SAFETY_OFFICER can " + verb + " incidents")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, err := s.store.Incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status != from {
		return nil, transitionErr("incident", inc.IncidentNumber, string(inc.Status), verb)
	}
	req.apply(inc)
	now := s.now()
	if to == domain.IncidentClosed {
		if blank(inc.RootCause) || blank(inc.CorrectiveAction) {
			return nil, validationErr("rootCause and correctiveAction are required to close an incident")
		}
		inc.ClosedAt = timePtr(now)
	}
	inc.Status = to
	inc.History = append(inc.History, historyEntry(now, actor, verb, string(from), string(to), ""))
	inc.Touch(now)
	if err := s.store.Incidents.Update(ctx, *inc); err != nil {
		return nil, fmt.Errorf("failed to update incident: %w", err)
	}
	s.emit(ctx, actor, inc, "incident."+string(to), string(from), "")
	return inc, nil
}

// IncidentSummary counts within a date range
type IncidentSummary struct {
	Range      domain.DateRange `json:"range"`
	Total      int              `json:"total"`
	ByType     map[string]int   `json:"byType"`
	BySeverity map[string]int   `json:"bySeverity"`
	ByStatus   map[string]int   `json:"byStatus"`
	// DaysSinceLostTime days since the last LOST_TIME incident; -1 when none recorded.
	DaysSinceLostTime int `json:"daysSinceLostTime"`
}

func (s *IncidentService) Summary(ctx context.Context, r domain.DateRange) (*IncidentSummary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	all, err := s.store.Incidents.All(ctx)
	if err != nil {
		return nil, err
	}
	sum := &IncidentSummary{
		Range:             r,
		ByType:            map[string]int{},
		BySeverity:        map[string]int{},
		ByStatus:          map[string]int{},
		DaysSinceLostTime: -1,
	}
	var lastLostTime time.Time
	for _, i := range all {
		if i.IncidentType == domain.IncidentLostTime && i.Date.After(lastLostTime) {
			lastLostTime = i.Date
		}
		if !r.Contains(i.Date) {
			continue
		}
		sum.Total++
		sum.ByType[string(i.IncidentType)]++
		sum.BySeverity[string(i.Severity)]++
		sum.ByStatus[string(i.Status)]++
	}
	if !lastLostTime.IsZero() {
		sum.DaysSinceLostTime = int(s.now().Sub(lastLostTime).Hours() / 24)
	}
	return sum, nil
}

func (s *IncidentService) emit(ctx context.Context, actor *domain.User, inc *domain.SafetyIncident, typ, from, comment string) {
	s.publish(ctx, events.Event{
		Type:       strings.ToLower(typ),
		Collection: repository.CollectionIncidents,
		RecordID:   inc.ID,
		Number:     inc.IncidentNumber,
		ActorID:    actorID(actor),
		From:       from,
		To:         string(inc.Status),
		Comment:    comment,
	})
}
