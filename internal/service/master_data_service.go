package service

import (
	"context"
	"fmt"
	"strings"

	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"go.uber.org/zap"
)

// MasterDataService items, customers and suppliers
type MasterDataService struct {
	base
}

func NewMasterDataService(d Deps) *MasterDataService {
	s := &MasterDataService{}
	s.init(d)
	return s
}

var masterEditors = []domain.Role{domain.RoleQAManager}

// ItemRequest create/update payload
type ItemRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Unit          string `json:"unit"`
	Specification string `json:"specification"`
	Active        *bool  `json:"active,omitempty"`
}

// CustomerRequest create/update payload
type CustomerRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Active      *bool  `json:"active,omitempty"`
}

// SupplierRequest create/update payload
type SupplierRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Approved    bool   `json:"approved"`
	Active      *bool  `json:"active,omitempty"`
}

func checkCodeName(code, name string) (string, string, error) {
	code, name = strings.ToUpper(strings.TrimSpace(code)), strings.TrimSpace(name)
	if code == "" {
		return "", "", validationErr("code is required")
	}
	if name == "" {
		return "", "", validationErr("name is required")
	}
	return code, name, nil
}

// uniqueCode fails with ErrConflict when another record already uses code.
func uniqueCode[T domain.Record](ctx context.Context, repo repository.Repository[T], selfID, code string, codeOf func(T) string) error {
	all, err := repo.All(ctx)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if rec.RecordID() != selfID && strings.EqualFold(codeOf(rec), code) {
			return fmt.Errorf("%w: code %s already in use", domain.ErrConflict, code)
		}
	}
	return nil
}

func (s *MasterDataService) canEdit(actor *domain.User, extra ...domain.Role) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.HasRole(append(extra, masterEditors...)...) {
		return forbiddenErr("not allowed to edit master data")
	}
	return nil
}

// Items

func (s *MasterDataService) ListItems(ctx context.Context, req ListRequest) (*Page[domain.MasterItem], error) {
	return listPage(ctx, s.store.Items, req)
}

func (s *MasterDataService) GetItem(ctx context.Context, id string) (*domain.MasterItem, error) {
	return s.store.Items.Get(ctx, id)
}

func (s *MasterDataService) SaveItem(ctx context.Context, actor *domain.User, id string, req ItemRequest) (*domain.MasterItem, error) {
	if err := s.canEdit(actor); err != nil {
		return nil, err
	}
	code, name, err := checkCodeName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item := &domain.MasterItem{Meta: domain.Meta{ID: newID()}, Active: true}
	if id != "" {
		if item, err = s.store.Items.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := uniqueCode(ctx, s.store.Items, item.ID, code, func(m domain.MasterItem) string { return m.Code }); err != nil {
		return nil, err
	}
	item.Code, item.Name = code, name
	item.Category = strings.TrimSpace(req.Category)
	item.Unit = strings.TrimSpace(req.Unit)
	item.Specification = strings.TrimSpace(req.Specification)
	if req.Active != nil {
		item.Active = *req.Active
	}
	item.Touch(s.now())
	if id == "" {
		err = s.store.Items.Create(ctx, *item)
	} else {
		err = s.store.Items.Update(ctx, *item)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return item, nil
}

func (s *MasterDataService) DeleteItem(ctx context.Context, actor *domain.User, id string) (bool, error) {
	if err := s.canEdit(actor); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.store.Items.Get(ctx, id)
	if err != nil {
		return false, err
	}
	refs, err := s.itemReferenced(ctx, id)
	if err != nil {
		return false, err
	}
	if !refs {
		return false, s.store.Items.Delete(ctx, id)
	}
	item.Active = false
	item.Touch(s.now())
	s.logger.Info("Item deactivated instead of deleted", zap.String("item_id", id))
	return true, s.store.Items.Update(ctx, *item)
}

func (s *MasterDataService) itemReferenced(ctx context.Context, id string) (bool, error) {
	tickets, err := s.store.Tickets.All(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.ItemID == id {
			return true, nil
		}
	}
	inspections, err := s.store.Inspections.All(ctx)
	if err != nil {
		return false, err
	}
	for _, q := range inspections {
		if q.ItemID == id {
			return true, nil
		}
	}
	ncrs, err := s.store.NCRs.All(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range ncrs {
		if n.ItemID == id {
			return true, nil
		}
	}
	complaints, err := s.store.Complaints.All(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range complaints {
		if c.ItemID == id {
			return true, nil
		}
	}
	return false, nil
}

// Customers

func (s *MasterDataService) ListCustomers(ctx context.Context, req ListRequest) (*Page[domain.Customer], error) {
	return listPage(ctx, s.store.Customers, req)
}

func (s *MasterDataService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.store.Customers.Get(ctx, id)
}

func (s *MasterDataService) SaveCustomer(ctx context.Context, actor *domain.User, id string, req CustomerRequest) (*domain.Customer, error) {
	if err := s.canEdit(actor, domain.RoleSales); err != nil {
		return nil, err
	}
	code, name, err := checkCodeName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := &domain.Customer{Meta: domain.Meta{ID: newID()}, Active: true}
	if id != "" {
		if c, err = s.store.Customers.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := uniqueCode(ctx, s.store.Customers, c.ID, code, func(m domain.Customer) string { return m.Code }); err != nil {
		return nil, err
	}
	c.Code, c.Name = code, name
	c.ContactName = strings.TrimSpace(req.ContactName)
	c.Email = strings.TrimSpace(req.Email)
	c.Phone = strings.TrimSpace(req.Phone)
	if req.Active != nil {
		c.Active = *req.Active
	}
	c.Touch(s.now())
	if id == "" {
		err = s.store.Customers.Create(ctx, *c)
	} else {
		err = s.store.Customers.Update(ctx, *c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save customer: %w", err)
	}
	return c, nil
}

func (s *MasterDataService) DeleteCustomer(ctx context.Context, actor *domain.User, id string) (bool, error) {
	if err := s.canEdit(actor, domain.RoleSales); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.store.Customers.Get(ctx, id)
	if err != nil {
		return false, err
	}
	refs, err := s.customerReferenced(ctx, id)
	if err != nil {
		return false, err
	}
	if !refs {
		return false, s.store.Customers.Delete(ctx, id)
	}
	c.Active = false
	c.Touch(s.now())
	s.logger.Info("Customer deactivated instead of deleted", zap.String("customer_id", id))
	return true, s.store.Customers.Update(ctx, *c)
}

func (s *MasterDataService) customerReferenced(ctx context.Context, id string) (bool, error) {
	tickets, err := s.store.Tickets.All(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.CustomerID == id {
			return true, nil
		}
	}
	inspections, err := s.store.Inspections.All(ctx)
	if err != nil {
		return false, err
	}
	for _, q := range inspections {
		if q.CustomerID == id {
			return true, nil
		}
	}
	complaints, err := s.store.Complaints.All(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range complaints {
		if c.CustomerID == id {
			return true, nil
		}
	}
	return false, nil
}

// Suppliers

func (s *MasterDataService) ListSuppliers(ctx context.Context, req ListRequest) (*Page[domain.Supplier], error) {
	return listPage(ctx, s.store.Suppliers, req)
}

func (s *MasterDataService) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return s.store.Suppliers.Get(ctx, id)
}

func (s *MasterDataService) SaveSupplier(ctx context.Context, actor *domain.User, id string, req SupplierRequest) (*domain.Supplier, error) {
	if err := s.canEdit(actor); err != nil {
		return nil, err
	}
	code, name, err := checkCodeName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sup := &domain.Supplier{Meta: domain.Meta{ID: newID()}, Active: true}
	if id != "" {
		if sup, err = s.store.Suppliers.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := uniqueCode(ctx, s.store.Suppliers, sup.ID, code, func(m domain.Supplier) string { return m.Code }); err != nil {
		return nil, err
	}
	sup.Code, sup.Name = code, name
	sup.ContactName = strings.TrimSpace(req.ContactName)
	sup.Email = strings.TrimSpace(req.Email)
	sup.Approved = req.Approved
	if req.Active != nil {
		sup.Active = *req.Active
	}
	sup.Touch(s.now())
	if id == "" {
		err = s.store.Suppliers.Create(ctx, *sup)
	} else {
		err = s.store.Suppliers.Update(ctx, *sup)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save supplier: %w", err)
	}
	return sup, nil
}

func (s *MasterDataService) DeleteSupplier(ctx context.Context, actor *domain.User, id string) (bool, error) {
	if err := s.canEdit(actor); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, err := s.store.Suppliers.Get(ctx, id)
	if err != nil {
		return false, err
	}
	ncrs, err := s.store.NCRs.All(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range ncrs {
		if n.SupplierID == id {
			sup.Active = false
			sup.Touch(s.now())
			s.logger.Info("Supplier deactivated instead of deleted", zap.String("supplier_id", id))
			return true, s.store.Suppliers.Update(ctx, *sup)
		}
	}
	return false, s.store.Suppliers.Delete(ctx, id)
}
