package repository

import (
	"context"
	"fmt"
	"time"

	"qms-data/internal/domain"
)

// Demo identities; the mock login picks one of these ids.
const (
	DemoAdminID         = "u-admin"
	DemoQAManagerID     = "u-qa-manager"
	DemoInspectorID     = "u-inspector"
	DemoSafetyOfficerID = "u-safety"
	DemoDocControllerID = "u-doc-control"
	DemoOperatorID      = "u-operator"
	DemoSalesID         = "u-sales"
)

// SeedDemo loads the demo master data and users. Existing ids are skipped so
// the call is safe on every start.
func SeedDemo(ctx context.Context, s *Store, now time.Time) error {
	meta := func(id string) domain.Meta { return domain.Meta{ID: id, CreatedAt: now, UpdatedAt: now} }

	users := []domain.User{
		{Meta: meta(DemoAdminID), Name: "System Admin", Email: "admin@qms.local", Role: domain.RoleAdmin, Department: "IT", Active: true},
		{Meta: meta(DemoQAManagerID), Name: "Quality Manager", Email: "qa.manager@qms.local", Role: domain.RoleQAManager, Department: "Quality", Active: true},
		{Meta: meta(DemoInspectorID), Name: "QA Inspector", Email: "inspector@qms.local", Role: domain.RoleQAInspector, Department: "Quality", Active: true},
		{Meta: meta(DemoSafetyOfficerID), Name: "Safety Officer", Email: "safety@qms.local", Role: domain.RoleSafetyOfficer, Department: "HSE", Active: true},
		{Meta: meta(DemoDocControllerID), Name: "Document Controller", Email: "doc.control@qms.local", Role: domain.RoleDocController, Department: "Quality", Active: true},
		{Meta: meta(DemoOperatorID), Name: "Press Operator", Email: "operator@qms.local", Role: domain.RoleOperator, Department: "Production", Active: true},
		{Meta: meta(DemoSalesID), Name: "Account Manager", Email: "sales@qms.local", Role: domain.RoleSales, Department: "Sales", Active: true},
	}
	customers := []domain.Customer{
		{Meta: meta("c-freshfoods"), Code: "CUST-001", Name: "Fresh Foods Ltd", ContactName: "Dana Reed", Email: "quality@freshfoods.example", Active: true},
		{Meta: meta("c-pharmaco"), Code: "CUST-002", Name: "PharmaCo", ContactName: "Lee Park", Email: "supplier.quality@pharmaco.example", Active: true},
	}
	suppliers := []domain.Supplier{
		{Meta: meta("s-boardmill"), Code: "SUP-001", Name: "Northern Board Mill", Email: "orders@boardmill.example", Approved: true, Active: true},
		{Meta: meta("s-inks"), Code: "SUP-002", Name: "Colour Inks Co", Email: "sales@inks.example", Approved: true, Active: true},
	}
	items := []domain.MasterItem{
		{Meta: meta("i-carton-250"), Code: "CTN-250", Name: "Folding carton 250ml", Category: "Carton", Unit: "pcs", Specification: "GC1 350gsm, 4 colour + varnish", Active: true},
		{Meta: meta("i-label-a5"), Code: "LBL-A5", Name: "Self-adhesive label A5", Category: "Label", Unit: "roll", Specification: "PP white, permanent adhesive", Active: true},
		{Meta: meta("i-board-gc1"), Code: "RM-GC1-350", Name: "GC1 board 350gsm", Category: "Raw material", Unit: "kg", Active: true},
	}

	if err := seed(ctx, s.Users, users); err != nil {
		return err
	}
	if err := seed(ctx, s.Customers, customers); err != nil {
		return err
	}
	if err := seed(ctx, s.Suppliers, suppliers); err != nil {
		return err
	}
	return seed(ctx, s.Items, items)
}

func seed[T domain.Record](ctx context.Context, repo Repository[T], recs []T) error {
	for _, rec := range recs {
		if _, err := repo.Get(ctx, rec.RecordID()); err == nil {
			continue
		}
		if err := repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("failed to seed %s: %w", rec.RecordID(), err)
		}
	}
	return nil
}
