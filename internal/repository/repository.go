package repository

import (
	"context"

	"qms-data/internal/domain"
)

// Collection names; also the backup section keys and the qms_records.collection column.
const (
	CollectionUsers       = "users"
	CollectionDocuments   = "documents"
	CollectionIncidents   = "safetyIncidents"
	CollectionTickets     = "qaTickets"
	CollectionInspections = "qaInspections"
	CollectionNCRs        = "ncrRecords"
	CollectionComplaints  = "complaints"
	CollectionTraining    = "trainingRecords"
	CollectionItems       = "masterItems"
	CollectionCustomers   = "customers"
	CollectionSuppliers   = "suppliers"
)

// Repository record access for one collection.
// Repositories only check data integrity (id present, unique, exists);
// workflow rules live in the service layer.
type Repository[T domain.Record] interface {
	Get(ctx context.Context, id string) (*T, error)
	// List returns one page ordered by record date descending, plus the total
	// number of matches.
	List(ctx context.Context, filter Filter, page, size int) ([]T, int, error)
	All(ctx context.Context) ([]T, error)
	Create(ctx context.Context, rec T) error
	Update(ctx context.Context, rec T) error
	// UpdateAll writes every record or none of them.
	UpdateAll(ctx context.Context, recs []T) error
	Delete(ctx context.Context, id string) error
	// ReplaceAll swaps the whole collection; used by backup import only.
	ReplaceAll(ctx context.Context, recs []T) error
}

// Filter list query filter
type Filter struct {
	Search string           // case-insensitive substring over SearchText
	Status string           // exact RecordStatus
	Range  domain.DateRange // applied to RecordDate
}

// Matches applies the filter to a single record.
func (f Filter) Matches(rec domain.Record) bool {
	if f.Status != "" && rec.RecordStatus() != f.Status {
		return false
	}
	if f.Search != "" && !containsFold(rec.SearchText(), f.Search) {
		return false
	}
	if !f.Range.IsZero() && !f.Range.Contains(rec.RecordDate()) {
		return false
	}
	return true
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 100
	}
	return page, size
}
