package repository

import (
	"database/sql"

	"qms-data/internal/domain"
)

// Store bundles the QMS collections.
type Store struct {
	Users       Repository[domain.User]
	Documents   Repository[domain.Document]
	Incidents   Repository[domain.SafetyIncident]
	Tickets     Repository[domain.QATicket]
	Inspections Repository[domain.QAInspection]
	NCRs        Repository[domain.NCRRecord]
	Complaints  Repository[domain.CustomerComplaint]
	Training    Repository[domain.TrainingRecord]
	Items       Repository[domain.MasterItem]
	Customers   Repository[domain.Customer]
	Suppliers   Repository[domain.Supplier]

	db *sql.DB // set for the Postgres store; lets ReplaceAll share one transaction
}

// NewMemoryStore used when the DB is disabled or unreachable
func NewMemoryStore() *Store {
	return &Store{
		Users:       NewMemoryRepository[domain.User](),
		Documents:   NewMemoryRepository[domain.Document](),
		Incidents:   NewMemoryRepository[domain.SafetyIncident](),
		Tickets:     NewMemoryRepository[domain.QATicket](),
		Inspections: NewMemoryRepository[domain.QAInspection](),
		NCRs:        NewMemoryRepository[domain.NCRRecord](),
		Complaints:  NewMemoryRepository[domain.CustomerComplaint](),
		Training:    NewMemoryRepository[domain.TrainingRecord](),
		Items:       NewMemoryRepository[domain.MasterItem](),
		Customers:   NewMemoryRepository[domain.Customer](),
		Suppliers:   NewMemoryRepository[domain.Supplier](),
	}
}

// NewPostgresStore every collection shares the qms_records table
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		Users:       NewPostgresRepository[domain.User](db, CollectionUsers),
		Documents:   NewPostgresRepository[domain.Document](db, CollectionDocuments),
		Incidents:   NewPostgresRepository[domain.SafetyIncident](db, CollectionIncidents),
		Tickets:     NewPostgresRepository[domain.QATicket](db, CollectionTickets),
		Inspections: NewPostgresRepository[domain.QAInspection](db, CollectionInspections),
		NCRs:        NewPostgresRepository[domain.NCRRecord](db, CollectionNCRs),
		Complaints:  NewPostgresRepository[domain.CustomerComplaint](db, CollectionComplaints),
		Training:    NewPostgresRepository[domain.TrainingRecord](db, CollectionTraining),
		Items:       NewPostgresRepository[domain.MasterItem](db, CollectionItems),
		Customers:   NewPostgresRepository[domain.Customer](db, CollectionCustomers),
		Suppliers:   NewPostgresRepository[domain.Supplier](db, CollectionSuppliers),
	}
}
