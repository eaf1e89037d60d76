package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/repository"
)

// Version backup file format version written to meta.version
const Version = "1.0"

// ErrInvalidFile is the only error a caller sees for an unreadable backup.
var ErrInvalidFile = errors.New("invalid backup file")

// Meta backup file header
type Meta struct {
	Version    string           `json:"version"`
	ExportedBy string           `json:"exportedBy"`
	Date       time.Time        `json:"date"`
	Range      domain.DateRange `json:"range"`
}

// Data one array per section. A nil section is absent from the file and is
// left untouched on import.
type Data struct {
	SafetyIncidents *[]domain.SafetyIncident    `json:"safetyIncidents,omitempty"`
	Documents       *[]domain.Document          `json:"documents,omitempty"`
	TrainingRecords *[]domain.TrainingRecord    `json:"trainingRecords,omitempty"`
	QATickets       *[]domain.QATicket          `json:"qaTickets,omitempty"`
	QAInspections   *[]domain.QAInspection      `json:"qaInspections,omitempty"`
	NCRRecords      *[]domain.NCRRecord         `json:"ncrRecords,omitempty"`
	Complaints      *[]domain.CustomerComplaint `json:"complaints,omitempty"`
	Users           *[]domain.User              `json:"users,omitempty"`
	MasterItems     *[]domain.MasterItem        `json:"masterItems,omitempty"`
	Customers       *[]domain.Customer          `json:"customers,omitempty"`
	Suppliers       *[]domain.Supplier          `json:"suppliers,omitempty"`
}

// File backup document
type File struct {
	Meta Meta `json:"meta"`
	Data Data `json:"data"`
}

// Section describes one exportable collection.
type Section struct {
	Key   string
	Title string
	// Dated sections are filtered by the backup range; the others are
	// always exported whole.
	Dated bool
}

// Sections in file order.
var Sections = []Section{
	{Key: repository.CollectionIncidents, Title: "SAFETY INCIDENTS", Dated: true},
	{Key: repository.CollectionDocuments, Title: "DOCUMENTS", Dated: true},
	{Key: repository.CollectionTraining, Title: "TRAINING RECORDS", Dated: true},
	{Key: repository.CollectionTickets, Title: "QA TICKETS", Dated: true},
	{Key: repository.CollectionInspections, Title: "QA INSPECTIONS", Dated: true},
	{Key: repository.CollectionNCRs, Title: "NCR RECORDS", Dated: true},
	{Key: repository.CollectionComplaints, Title: "CUSTOMER COMPLAINTS", Dated: true},
	{Key: repository.CollectionUsers, Title: "USERS"},
	{Key: repository.CollectionItems, Title: "MASTER ITEMS"},
	{Key: repository.CollectionCustomers, Title: "CUSTOMERS"},
	{Key: repository.CollectionSuppliers, Title: "SUPPLIERS"},
}

// SelectSections resolves module keys; empty selects every section.
func SelectSections(modules []string) ([]Section, error) {
	var keys []string
	for _, m := range modules {
		for _, k := range strings.Split(m, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return Sections, nil
	}
	want := map[string]bool{}
	for _, k := range keys {
		found := false
		for _, s := range Sections {
			if strings.EqualFold(s.Key, k) {
				want[s.Key] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown module %q", domain.ErrValidation, k)
		}
	}
	out := make([]Section, 0, len(want))
	for _, s := range Sections {
		if want[s.Key] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Parse decodes a backup file. Every decoding problem maps to ErrInvalidFile.
func Parse(b []byte) (*File, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(b), &top); err != nil {
		return nil, ErrInvalidFile
	}
	if raw, ok := top["data"]; !ok || !isObject(raw) {
		return nil, ErrInvalidFile
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, ErrInvalidFile
	}
	if f.Meta.Version != "" && !strings.HasPrefix(f.Meta.Version, "1.") {
		return nil, ErrInvalidFile
	}
	if err := f.Data.checkIDs(); err != nil {
		return nil, ErrInvalidFile
	}
	return &f, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func (d *Data) checkIDs() error {
	for _, s := range Sections {
		recs, ok := d.Records(s.Key)
		if !ok {
			continue
		}
		seen := map[string]bool{}
		for _, r := range recs {
			id := r.RecordID()
			if id == "" || seen[id] {
				return fmt.Errorf("section %s: missing or duplicate id %q", s.Key, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// Records returns the section's records; ok is false when the section is absent.
func (d *Data) Records(key string) ([]domain.Record, bool) {
	switch key {
	case repository.CollectionIncidents:
		return asRecords(d.SafetyIncidents)
	case repository.CollectionDocuments:
		return asRecords(d.Documents)
	case repository.CollectionTraining:
		return asRecords(d.TrainingRecords)
	case repository.CollectionTickets:
		return asRecords(d.QATickets)
	case repository.CollectionInspections:
		return asRecords(d.QAInspections)
	case repository.CollectionNCRs:
		return asRecords(d.NCRRecords)
	case repository.CollectionComplaints:
		return asRecords(d.Complaints)
	case repository.CollectionUsers:
		return asRecords(d.Users)
	case repository.CollectionItems:
		return asRecords(d.MasterItems)
	case repository.CollectionCustomers:
		return asRecords(d.Customers)
	case repository.CollectionSuppliers:
		return asRecords(d.Suppliers)
	}
	return nil, false
}

func asRecords[T domain.Record](p *[]T) ([]domain.Record, bool) {
	if p == nil {
		return nil, false
	}
	out := make([]domain.Record, 0, len(*p))
	for _, r := range *p {
		out = append(out, r)
	}
	return out, true
}

// FilterRange keeps the records whose record date falls in r.
func FilterRange[T domain.Record](recs []T, r domain.DateRange) []T {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if r.IsZero() || r.Contains(rec.RecordDate()) {
			out = append(out, rec)
		}
	}
	return out
}

// Filename backup-<date>.<ext>
func Filename(at time.Time, ext string) string {
	return fmt.Sprintf("qms-backup-%s.%s", at.Format(domain.DateLayout), ext)
}
