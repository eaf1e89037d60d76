package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"

	"go.uber.org/zap"
)

// TrainingService read-and-understood training on approved documents
type TrainingService struct {
	base
	dueDays int
}

func NewTrainingService(d Deps, dueDays int) *TrainingService {
	s := &TrainingService{dueDays: dueDays}
	s.init(d)
	return s
}

// AssignTrainingRequest explicit assignment
type AssignTrainingRequest struct {
	DocumentID string     `json:"documentId"`
	UserIDs    []string   `json:"userIds"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

// Assign creates training records for an APPROVED document. Users that already
// hold a record for the same document version are skipped.
func (s *TrainingService) Assign(ctx context.Context, actor *domain.User, req AssignTrainingRequest) ([]domain.TrainingRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(domain.RoleQAManager, domain.RoleDocController) {
		return nil, forbiddenErr("only QA_MANAGER or DOC_CONTROLLER can assign training")
	}
	if len(req.UserIDs) == 0 {
		return nil, validationErr("at least one user is required")
	}
	doc, err := s.store.Documents.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		u, err := s.store.Users.Get(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		if !u.Active {
			return nil, validationErr("user %s is inactive", u.ID)
		}
		users = append(users, *u)
	}
	return s.assign(ctx, actor, doc, users, req.DueDate)
}

// AssignForDocument assigns doc to every active user of its department.
func (s *TrainingService) AssignForDocument(ctx context.Context, actor *domain.User, doc *domain.Document) ([]domain.TrainingRecord, error) {
	if blank(doc.Department) {
		return nil, nil
	}
	all, err := s.store.Users.All(ctx)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	for _, u := range all {
		if u.Active && strings.EqualFold(u.Department, doc.Department) {
			users = append(users, u)
		}
	}
	var due *time.Time
	if s.dueDays > 0 {
		due = timePtr(s.now().AddDate(0, 0, s.dueDays))
	}
	return s.assign(ctx, actor, doc, users, due)
}

func (s *TrainingService) assign(ctx context.Context, actor *domain.User, doc *domain.Document, users []domain.User, due *time.Time) ([]domain.TrainingRecord, error) {
	if doc.Status != domain.DocApproved {
		return nil, transitionErr("document", doc.ID, string(doc.Status), "assign training")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.store.Training.All(ctx)
	if err != nil {
		return nil, err
	}
	held := map[string]bool{}
	for _, t := range existing {
		if t.DocumentID == doc.ID && t.DocumentVersion == doc.Version {
			held[t.UserID] = true
		}
	}

	now := s.now()
	created := []domain.TrainingRecord{}
	for _, u := range users {
		if held[u.ID] {
			continue
		}
		held[u.ID] = true
		rec := domain.TrainingRecord{
			Meta:            domain.Meta{ID: newID()},
			UserID:          u.ID,
			DocumentID:      doc.ID,
			DocumentVersion: doc.Version,
			AssignedBy:      actorID(actor),
			AssignedDate:    now,
			DueDate:         due,
			Status:          domain.TrainingAssigned,
		}
		rec.Touch(now)
		if err := s.store.Training.Create(ctx, rec); err != nil {
			return created, fmt.Errorf("failed to create training record: %w", err)
		}
		created = append(created, rec)
		s.publish(ctx, events.Event{
			Type: "training.assigned", Collection: repository.CollectionTraining,
			RecordID: rec.ID, ActorID: actorID(actor), To: string(rec.Status), At: now,
		})
	}
	s.logger.Info("Training assigned",
		zap.String("document_id", doc.ID),
		zap.Int("version", doc.Version),
		zap.Int("assigned", len(created)),
	)
	return created, nil
}

// Complete marks a record done. The trainee or a QA_MANAGER may complete it.
func (s *TrainingService) Complete(ctx context.Context, actor *domain.User, id string, score *int) (*domain.TrainingRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if score != nil && (*score < 0 || *score > 100) {
		return nil, validationErr("score must be between 0 and 100")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.store.Training.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != actor.ID && !actor.HasRole(domain.RoleQAManager) {
		return nil, forbiddenErr("only the trainee or QA_MANAGER can complete training")
	}
	now := s.now()
	from := rec.EffectiveStatus(now)
	if from == domain.TrainingCompleted {
		return nil, transitionErr("training", id, string(from), "complete")
	}
	rec.Status = domain.TrainingCompleted
	rec.CompletedDate = timePtr(now)
	rec.Score = score
	rec.Touch(now)
	if err := s.store.Training.Update(ctx, *rec); err != nil {
		return nil, fmt.Errorf("failed to complete training: %w", err)
	}
	s.publish(ctx, events.Event{
		Type: "training.completed", Collection: repository.CollectionTraining,
		RecordID: rec.ID, ActorID: actor.ID, From: string(from), To: string(rec.Status), At: now,
	})
	return rec, nil
}

// TrainingListRequest list query; Status may be OVERDUE.
type TrainingListRequest struct {
	ListRequest
	UserID     string
	DocumentID string
}

// List derives OVERDUE before filtering, so it filters in memory.
func (s *TrainingService) List(ctx context.Context, req TrainingListRequest) (*Page[domain.TrainingRecord], error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	all, err := s.store.Training.All(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	filter := repository.Filter{Search: strings.TrimSpace(req.Search), Range: req.Range}
	matched := []domain.TrainingRecord{}
	for _, t := range all {
		t.Status = t.EffectiveStatus(now)
		if req.Status != "" && string(t.Status) != req.Status {
			continue
		}
		if req.UserID != "" && t.UserID != req.UserID {
			continue
		}
		if req.DocumentID != "" && t.DocumentID != req.DocumentID {
			continue
		}
		if filter.Matches(t) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].AssignedDate.After(matched[j].AssignedDate)
	})
	return paginate(matched, req.Page, req.Size), nil
}

func (s *TrainingService) Get(ctx context.Context, id string) (*domain.TrainingRecord, error) {
	rec, err := s.store.Training.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = rec.EffectiveStatus(s.now())
	return rec, nil
}

// TrainingMatrixRow one document in a user's matrix
type TrainingMatrixRow struct {
	TrainingID    string                `json:"trainingId"`
	DocumentID    string                `json:"documentId"`
	DocNumber     string                `json:"docNumber"`
	Title         string                `json:"title"`
	Version       int                   `json:"version"`
	Status        domain.TrainingStatus `json:"status"`
	DueDate       *time.Time            `json:"dueDate,omitempty"`
	CompletedDate *time.Time            `json:"completedDate,omitempty"`
}

// TrainingMatrix per-user completion summary
type TrainingMatrix struct {
	UserID         string              `json:"userId"`
	UserName       string              `json:"userName"`
	Department     string              `json:"department"`
	Assigned       int                 `json:"assigned"`
	Completed      int                 `json:"completed"`
	Overdue        int                 `json:"overdue"`
	CompletionRate float64             `json:"completionRate"`
	Rows           []TrainingMatrixRow `json:"rows"`
}

func (s *TrainingService) Matrix(ctx context.Context, userID string) (*TrainingMatrix, error) {
	u, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.Training.All(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	m := &TrainingMatrix{UserID: u.ID, UserName: u.Name, Department: u.Department, Rows: []TrainingMatrixRow{}}
	for _, t := range all {
		if t.UserID != userID {
			continue
		}
		row := TrainingMatrixRow{
			TrainingID:    t.ID,
			DocumentID:    t.DocumentID,
			Version:       t.DocumentVersion,
			Status:        t.EffectiveStatus(now),
			DueDate:       t.DueDate,
			CompletedDate: t.CompletedDate,
		}
		if doc, err := s.store.Documents.Get(ctx, t.DocumentID); err == nil {
			row.DocNumber, row.Title = doc.DocNumber, doc.Title
		}
		switch row.Status {
		case domain.TrainingCompleted:
			m.Completed++
		case domain.TrainingOverdue:
			m.Overdue++
		default:
			m.Assigned++
		}
		m.Rows = append(m.Rows, row)
	}
	if n := len(m.Rows); n > 0 {
		m.CompletionRate = float64(m.Completed) / float64(n)
	}
	sort.Slice(m.Rows, func(i, j int) bool {
		if m.Rows[i].DocNumber != m.Rows[j].DocNumber {
			return m.Rows[i].DocNumber < m.Rows[j].DocNumber
		}
		return m.Rows[i].Version > m.Rows[j].Version
	})
	return m, nil
}

func paginate[T any](items []T, page, size int) *Page[T] {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 100
	}
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return &Page[T]{Items: items[start:end], Total: total}
}
