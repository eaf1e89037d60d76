package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"qms-data/internal/archive"
	"qms-data/internal/backup"
	"qms-data/internal/domain"
	"qms-data/internal/events"
	"qms-data/internal/repository"
	"qms-data/internal/store"

	"go.uber.org/zap"
)

// BackupRangeKey settings key of the configured backup range
const BackupRangeKey = "qms:settings:backup-range"

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// BackupArchive remote copy of JSON exports (S3 when configured).
type BackupArchive interface {
	Upload(ctx context.Context, at time.Time, data []byte) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, limit int) ([]archive.Object, error)
}

// BackupService range settings, export and import
type BackupService struct {
	base
	kv      store.KV
	archive BackupArchive
}

func NewBackupService(d Deps, kv store.KV, arc BackupArchive) *BackupService {
	s := &BackupService{kv: kv, archive: arc}
	s.init(d)
	return s
}

var backupAdmins = []domain.Role{domain.RoleAdmin}

// GetRange returns the configured range; unset means unbounded.
func (s *BackupService) GetRange(ctx context.Context) (domain.DateRange, error) {
	var r domain.DateRange
	val, err := s.kv.Get(ctx, BackupRangeKey)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return r, nil
		}
		return r, fmt.Errorf("failed to read backup range: %w", err)
	}
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		s.logger.Warn("Ignoring malformed backup range setting", zap.String("value", val), zap.Error(err))
		return domain.DateRange{}, nil
	}
	return r, nil
}

func (s *BackupService) SetRange(ctx context.Context, actor *domain.User, r domain.DateRange) (domain.DateRange, error) {
	if err := requireActor(actor); err != nil {
		return r, err
	}
	if !actor.HasRole(backupAdmins...) {
		return r, forbiddenErr("only ADMIN can change backup settings")
	}
	r.Start, r.End = strings.TrimSpace(r.Start), strings.TrimSpace(r.End)
	if err := r.Validate(); err != nil {
		return r, err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return r, err
	}
	if err := s.kv.Set(ctx, BackupRangeKey, string(b), 0); err != nil {
		return r, fmt.Errorf("failed to save backup range: %w", err)
	}
	s.logger.Info("Backup range updated", zap.String("range", r.Label()), zap.String("user_id", actor.ID))
	return r, nil
}

// ExportRequest export options. A zero Range uses the configured range.
type ExportRequest struct {
	Format  string
	Range   domain.DateRange
	Modules []string
}

// ExportResult encoded export
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	ArchiveKey  string
}

func (s *BackupService) Export(ctx context.Context, actor *domain.User, req ExportRequest) (*ExportResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(backupAdmins...) {
		return nil, forbiddenErr("only ADMIN can export data")
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV && format != FormatXLSX {
		return nil, validationErr("unsupported export format %q", req.Format)
	}
	sections, err := backup.SelectSections(req.Modules)
	if err != nil {
		return nil, err
	}
	r := req.Range
	if r.IsZero() {
		if r, err = s.GetRange(ctx); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	file, err := s.Snapshot(ctx, actor, r, sections)
	if err != nil {
		return nil, err
	}

	res := &ExportResult{}
	switch format {
	case FormatJSON:
		res.Body, err = json.MarshalIndent(file, "", "  ")
		res.ContentType = "application/json"
	case FormatCSV:
		var buf bytes.Buffer
		var tables []backup.Table
		if tables, err = backup.Tables(&file.Data, sections); err == nil {
			err = backup.WriteCSV(&buf, file.Meta, tables)
		}
		res.Body = buf.Bytes()
		res.ContentType = "text/csv; charset=utf-8"
	case FormatXLSX:
		var tables []backup.Table
		if tables, err = backup.Tables(&file.Data, sections); err == nil {
			res.Body, err = backup.WriteXLSX(file.Meta, tables)
		}
		res.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s export: %w", format, err)
	}
	res.Filename = backup.Filename(file.Meta.Date, format)

	if format == FormatJSON && s.archive != nil {
		key, err := s.archive.Upload(ctx, file.Meta.Date, res.Body)
		if err != nil {
			s.logger.Warn("Failed to archive backup", zap.Error(err))
		} else {
			res.ArchiveKey = key
		}
	}
	s.logger.Info("Data exported",
		zap.String("format", format),
		zap.String("range", r.Label()),
		zap.Int("sections", len(sections)),
		zap.String("archive_key", res.ArchiveKey),
	)
	s.publish(ctx, events.Event{Type: "backup.exported", Collection: "backup", ActorID: actor.ID, Comment: format + " " + r.Label()})
	return res, nil
}

// Snapshot collects the selected sections filtered by r.
func (s *BackupService) Snapshot(ctx context.Context, actor *domain.User, r domain.DateRange, sections []backup.Section) (*backup.File, error) {
	f := &backup.File{Meta: backup.Meta{
		Version:    backup.Version,
		ExportedBy: actor.Name,
		Date:       s.now(),
		Range:      r,
	}}
	d := &f.Data
	var err error

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range sections {
		rr := r
		if !sec.Dated {
			rr = domain.DateRange{}
		}
		switch sec.Key {
		case repository.CollectionIncidents:
			d.SafetyIncidents, err = snapshot(ctx, s.store.Incidents, rr)
		case repository.CollectionDocuments:
			d.Documents, err = snapshot(ctx, s.store.Documents, rr)
		case repository.CollectionTraining:
			d.TrainingRecords, err = snapshot(ctx, s.store.Training, rr)
		case repository.CollectionTickets:
			d.QATickets, err = snapshot(ctx, s.store.Tickets, rr)
		case repository.CollectionInspections:
			d.QAInspections, err = snapshot(ctx, s.store.Inspections, rr)
		case repository.CollectionNCRs:
			d.NCRRecords, err = snapshot(ctx, s.store.NCRs, rr)
		case repository.CollectionComplaints:
			d.Complaints, err = snapshot(ctx, s.store.Complaints, rr)
		case repository.CollectionUsers:
			d.Users, err = snapshot(ctx, s.store.Users, rr)
		case repository.CollectionItems:
			d.MasterItems, err = snapshot(ctx, s.store.Items, rr)
		case repository.CollectionCustomers:
			d.Customers, err = snapshot(ctx, s.store.Customers, rr)
		case repository.CollectionSuppliers:
			d.Suppliers, err = snapshot(ctx, s.store.Suppliers, rr)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", sec.Key, err)
		}
	}
	return f, nil
}

func snapshot[T domain.Record](ctx context.Context, repo repository.Repository[T], r domain.DateRange) (*[]T, error) {
	all, err := repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := backup.FilterRange(all, r)
	return &out, nil
}

// ImportResult records written per section
type ImportResult struct {
	Range  domain.DateRange `json:"range"`
	Counts map[string]int   `json:"counts"`
}

// Import replaces every section present in the file with its records that
// fall in the configured range. An unreadable file leaves the store untouched.
func (s *BackupService) Import(ctx context.Context, actor *domain.User, data []byte) (*ImportResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(backupAdmins...) {
		return nil, forbiddenErr("only ADMIN can import data")
	}
	file, err := backup.Parse(data)
	if err != nil {
		s.logger.Warn("Rejected backup import", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, backup.ErrInvalidFile
	}
	r, err := s.GetRange(ctx)
	if err != nil {
		return nil, err
	}

	d, all := &file.Data, domain.DateRange{}
	var reps []repository.Replacement
	reps = replacement(reps, repository.CollectionIncidents, s.store.Incidents, d.SafetyIncidents, r)
	reps = replacement(reps, repository.CollectionDocuments, s.store.Documents, d.Documents, r)
	reps = replacement(reps, repository.CollectionTraining, s.store.Training, d.TrainingRecords, r)
	reps = replacement(reps, repository.CollectionTickets, s.store.Tickets, d.QATickets, r)
	reps = replacement(reps, repository.CollectionInspections, s.store.Inspections, d.QAInspections, r)
	reps = replacement(reps, repository.CollectionNCRs, s.store.NCRs, d.NCRRecords, r)
	reps = replacement(reps, repository.CollectionComplaints, s.store.Complaints, d.Complaints, r)
	reps = replacement(reps, repository.CollectionUsers, s.store.Users, d.Users, all)
	reps = replacement(reps, repository.CollectionItems, s.store.Items, d.MasterItems, all)
	reps = replacement(reps, repository.CollectionCustomers, s.store.Customers, d.Customers, all)
	reps = replacement(reps, repository.CollectionSuppliers, s.store.Suppliers, d.Suppliers, all)

	s.mu.Lock()
	err = s.store.ReplaceAll(ctx, reps...)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Backup import failed, store unchanged", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to import backup: %w", err)
	}

	res := &ImportResult{Range: r, Counts: map[string]int{}}
	for _, rep := range reps {
		res.Counts[rep.Collection] = rep.Count
	}

	s.logger.Info("Data imported", zap.String("user_id", actor.ID), zap.String("range", r.Label()), zap.Any("counts", res.Counts))
	s.publish(ctx, events.Event{Type: "backup.imported", Collection: "backup", ActorID: actor.ID, Comment: r.Label()})
	return res, nil
}

// replacement adds the range-filtered section when the file carries it.
func replacement[T domain.Record](reps []repository.Replacement, key string, repo repository.Repository[T], recs *[]T, r domain.DateRange) []repository.Replacement {
	if recs == nil {
		return reps
	}
	return append(reps, repository.Replace(key, repo, backup.FilterRange(*recs, r)))
}

// Archives lists archived JSON backups.
func (s *BackupService) Archives(ctx context.Context, actor *domain.User, limit int) ([]archive.Object, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(backupAdmins...) {
		return nil, forbiddenErr("only ADMIN can list backups")
	}
	if s.archive == nil {
		return nil, validationErr("backup archive is not configured")
	}
	return s.archive.List(ctx, limit)
}

// Restore imports an archived backup.
func (s *BackupService) Restore(ctx context.Context, actor *domain.User, key string) (*ImportResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.HasRole(backupAdmins...) {
		return nil, forbiddenErr("only ADMIN can import data")
	}
	if s.archive == nil {
		return nil, validationErr("backup archive is not configured")
	}
	data, err := s.archive.Download(ctx, strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, actor, data)
}
