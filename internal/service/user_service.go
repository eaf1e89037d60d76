package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"qms-data/internal/domain"

	"go.uber.org/zap"
)

// UserService users and mock identity resolution
type UserService struct {
	base
}

func NewUserService(d Deps) *UserService {
	s := &UserService{}
	s.init(d)
	return s
}

// Resolve maps the asserted user id to an active user.
func (s *UserService) Resolve(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, forbiddenErr("user identity required")
	}
	u, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, forbiddenErr("unknown user " + userID)
		}
		return nil, err
	}
	if !u.Active {
		return nil, forbiddenErr("user is inactive")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, req ListRequest) (*Page[domain.User], error) {
	return listPage(ctx, s.store.Users, req)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.store.Users.Get(ctx, id)
}

// UserRequest create/update payload
type UserRequest struct {
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
	Active     *bool       `json:"active,omitempty"`
}

func (r *UserRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Department = strings.TrimSpace(r.Department)
	if r.Name == "" {
		return validationErr("name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return validationErr("invalid email %q", r.Email)
	}
	if !r.Role.Valid() {
		return validationErr("invalid role %q", r.Role)
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, actor *domain.User, req UserRequest) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, forbiddenErr("only ADMIN can manage users")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEmail(ctx, "", req.Email); err != nil {
		return nil, err
	}
	u := domain.User{
		Meta:       domain.Meta{ID: newID()},
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		Active:     req.Active == nil || *req.Active,
	}
	u.Touch(s.now())
	if err := s.store.Users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("User created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return &u, nil
}

func (s *UserService) Update(ctx context.Context, actor *domain.User, id string, req UserRequest) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, forbiddenErr("only ADMIN can manage users")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, id, req.Email); err != nil {
		return nil, err
	}
	u.Name, u.Email, u.Role, u.Department = req.Name, req.Email, req.Role, req.Department
	if req.Active != nil {
		if !*req.Active && u.ID == actor.ID {
			return nil, validationErr("cannot deactivate yourself")
		}
		u.Active = *req.Active
	}
	u.Touch(s.now())
	if err := s.store.Users.Update(ctx, *u); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// Delete removes an unreferenced user; a referenced one is deactivated
// instead and deactivated=true is returned.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) (deactivated bool, err error) {
	if err := requireActor(actor); err != nil {
		return false, err
	}
	if !actor.HasRole(domain.RoleAdmin) {
		return false, forbiddenErr("only ADMIN can manage users")
	}
	if id == actor.ID {
		return false, validationErr("cannot delete yourself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return false, err
	}
	refs, err := s.referenced(ctx, id)
	if err != nil {
		return false, err
	}
	if !refs {
		return false, s.store.Users.Delete(ctx, id)
	}
	u.Active = false
	u.Touch(s.now())
	if err := s.store.Users.Update(ctx, *u); err != nil {
		return false, err
	}
	s.logger.Info("User deactivated instead of deleted", zap.String("user_id", id))
	return true, nil
}

func (s *UserService) checkEmail(ctx context.Context, selfID, email string) error {
	all, err := s.store.Users.All(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		if u.ID != selfID && strings.EqualFold(u.Email, email) {
			return fmt.Errorf("%w: email %s already in use", domain.ErrConflict, email)
		}
	}
	return nil
}

func (s *UserService) referenced(ctx context.Context, id string) (bool, error) {
	docs, err := s.store.Documents.All(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.AuthorID == id || d.IsApprover(id) {
			return true, nil
		}
	}
	training, err := s.store.Training.All(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range training {
		if t.UserID == id {
			return true, nil
		}
	}
	ncrs, err := s.store.NCRs.All(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range ncrs {
		if n.RaisedBy == id || n.DispositionedBy == id || n.ApprovedBy == id {
			return true, nil
		}
	}
	incidents, err := s.store.Incidents.All(ctx)
	if err != nil {
		return false, err
	}
	for _, i := range incidents {
		if i.ReportedBy == id {
			return true, nil
		}
	}
	tickets, err := s.store.Tickets.All(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.RaisedBy == id || t.AssignedTo == id {
			return true, nil
		}
	}
	inspections, err := s.store.Inspections.All(ctx)
	if err != nil {
		return false, err
	}
	for _, q := range inspections {
		if q.InspectorID == id {
			return true, nil
		}
	}
	return false, nil
}
