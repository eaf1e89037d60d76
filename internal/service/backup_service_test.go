package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"qms-data/internal/archive"
	"qms-data/internal/backup"
	"qms-data/internal/domain"
	"qms-data/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeArchive struct {
	objects map[string][]byte
	err     error
}

func (f *fakeArchive) Upload(_ context.Context, at time.Time, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := "backups/" + at.Format("2006/01/02") + "/test.json"
	f.objects[key] = data
	return key, nil
}

func (f *fakeArchive) Download(_ context.Context, key string) ([]byte, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (f *fakeArchive) List(context.Context, int) ([]archive.Object, error) {
	out := []archive.Object{}
	for k, v := range f.objects {
		out = append(out, archive.Object{Key: k, Size: int64(len(v))})
	}
	return out, nil
}

// seedIncidents stores incidents dated around the end of May 2024.
func seedIncidents(t *testing.T, env *testEnv) {
	t.Helper()
	dates := map[string]time.Time{
		"inc-apr":     time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC),
		"inc-may-1":   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"inc-may-end": time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC),
		"inc-jun-1":   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for id, d := range dates {
		inc := domain.SafetyIncident{
			Meta:           domain.Meta{ID: id, CreatedAt: d, UpdatedAt: d},
			IncidentNumber: "SI-" + id,
			Date:           d,
			ReportedBy:     repository.DemoOperatorID,
			Location:       "Dock",
			IncidentType:   domain.IncidentNearMiss,
			Severity:       domain.SeverityLow,
			Description:    `Pallet "leaning", wrapped`,
			Status:         domain.IncidentOpen,
			History:        []domain.HistoryEntry{{At: d, ActorID: repository.DemoOperatorID, Action: "reported"}},
		}
		require.NoError(t, env.store.Incidents.Create(env.ctx, inc))
	}
}

func incidentIDs(recs []domain.SafetyIncident) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestBackupService_ExportJSONIncludesFullEndDay(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	res, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{
		Format:  FormatJSON,
		Range:   domain.DateRange{Start: "2024-05-01", End: "2024-05-31"},
		Modules: []string{"safetyIncidents,users"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, "qms-backup-2024-06-10.json", res.Filename)

	var file backup.File
	require.NoError(t, json.Unmarshal(res.Body, &file))
	assert.Equal(t, "1.0", file.Meta.Version)
	assert.Equal(t, "System Admin", file.Meta.ExportedBy)
	assert.Equal(t, domain.DateRange{Start: "2024-05-01", End: "2024-05-31"}, file.Meta.Range)

	require.NotNil(t, file.Data.SafetyIncidents)
	assert.ElementsMatch(t, []string{"inc-may-1", "inc-may-end"}, incidentIDs(*file.Data.SafetyIncidents))
	require.NotNil(t, file.Data.Users)
	assert.Len(t, *file.Data.Users, 7, "users are exported whole")
	assert.Nil(t, file.Data.Documents, "unselected module is absent")
}

func TestBackupService_ExportUsesConfiguredRange(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	_, err := env.svc.Backup.SetRange(env.ctx, env.user(repository.DemoQAManagerID), domain.DateRange{Start: "2024-06-01"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.svc.Backup.SetRange(env.ctx, admin, domain.DateRange{Start: "2024-06-02", End: "2024-06-01"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.Backup.SetRange(env.ctx, admin, domain.DateRange{Start: "2024-06-01"})
	require.NoError(t, err)
	r, err := env.svc.Backup.GetRange(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01 to ...", r.Label())

	res, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{Modules: []string{"safetyIncidents"}})
	require.NoError(t, err)
	var file backup.File
	require.NoError(t, json.Unmarshal(res.Body, &file))
	assert.Equal(t, []string{"inc-jun-1"}, incidentIDs(*file.Data.SafetyIncidents))
}

func TestBackupService_ExportCSV(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	res, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{
		Format:  FormatCSV,
		Range:   domain.DateRange{Start: "2024-05-31", End: "2024-05-31"},
		Modules: []string{"safetyIncidents", "qaTickets"},
	})
	require.NoError(t, err)

	lines := strings.Split(string(res.Body), "\n")
	assert.Equal(t, "QMS Data Export", lines[0])
	assert.Equal(t, "Exported By,System Admin", lines[1])
	assert.Equal(t, "Date,2024-06-10T09:00:00Z", lines[2])
	assert.Equal(t, "Range,2024-05-31 to 2024-05-31", lines[3])
	assert.Equal(t, "", lines[4])
	assert.Equal(t, "--- SAFETY INCIDENTS ---", lines[5])
	assert.True(t, strings.HasPrefix(lines[6], "id,createdAt,updatedAt,incidentNumber,date,"), lines[6])
	assert.Contains(t, lines[7], `"inc-may-end"`)
	assert.Contains(t, lines[7], `"Pallet ""leaning"", wrapped"`)
	assert.Contains(t, lines[7], `,"[{""at"":""2024-05-31T23:59:59Z""`, "history is JSON-encoded then quoted")
	assert.Equal(t, "", lines[8])
	assert.Equal(t, "--- QA TICKETS ---", lines[9])

	_, err = env.svc.Backup.Export(env.ctx, admin, ExportRequest{Format: "pdf"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.svc.Backup.Export(env.ctx, admin, ExportRequest{Modules: []string{"widgets"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBackupService_ExportXLSX(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)

	res, err := env.svc.Backup.Export(env.ctx, env.user(repository.DemoAdminID), ExportRequest{
		Format:  FormatXLSX,
		Modules: []string{"safetyIncidents"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(res.Body))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Export", "safetyIncidents"}, f.GetSheetList())

	rows, err := f.GetRows("safetyIncidents")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "id", rows[0][0])
}

func TestBackupService_ImportFiltersByConfiguredRange(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	res, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{Range: domain.DateRange{Start: "2000-01-01"}})
	require.NoError(t, err)

	require.NoError(t, env.store.Incidents.ReplaceAll(env.ctx, nil))
	_, err = env.svc.Backup.SetRange(env.ctx, admin, domain.DateRange{End: "2024-05-31"})
	require.NoError(t, err)

	result, err := env.svc.Backup.Import(env.ctx, admin, res.Body)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Counts[repository.CollectionIncidents])
	assert.Equal(t, 7, result.Counts[repository.CollectionUsers])

	all, err := env.store.Incidents.All(env.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inc-apr", "inc-may-1", "inc-may-end"}, incidentIDs(all))
}

func TestBackupService_ImportMissingSectionsUntouched(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	body := []byte(`{"meta":{"version":"1.0"},"data":{"qaTickets":[]}}`)
	result, err := env.svc.Backup.Import(env.ctx, admin, body)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{repository.CollectionTickets: 0}, result.Counts)

	all, err := env.store.Incidents.All(env.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBackupService_InvalidFileLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	for name, body := range map[string]string{
		"not json":     `{"meta":`,
		"no data":      `{"meta":{"version":"1.0"}}`,
		"wrong shape":  `{"data":{"safetyIncidents":{"id":"x"}}}`,
		"missing id":   `{"data":{"safetyIncidents":[{"date":"2024-05-01T00:00:00Z"}]}}`,
		"major bump":   `{"meta":{"version":"2.0"},"data":{}}`,
		"array at top": `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Backup.Import(env.ctx, admin, []byte(body))
			require.ErrorIs(t, err, backup.ErrInvalidFile)
			assert.Equal(t, "invalid backup file", err.Error())

			all, err := env.store.Incidents.All(env.ctx)
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}

	_, err := env.svc.Backup.Import(env.ctx, env.user(repository.DemoQAManagerID), []byte(`{"data":{}}`))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestBackupService_ArchiveAndRestore(t *testing.T) {
	arc := &fakeArchive{objects: map[string][]byte{}}
	env := newTestEnv(t, func(o *Options) { o.Archive = arc })
	seedIncidents(t, env)
	admin := env.user(repository.DemoAdminID)

	res, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{})
	require.NoError(t, err)
	assert.Equal(t, "backups/2024/06/10/test.json", res.ArchiveKey)

	csv, err := env.svc.Backup.Export(env.ctx, admin, ExportRequest{Format: FormatCSV})
	require.NoError(t, err)
	assert.Empty(t, csv.ArchiveKey, "only JSON exports are archived")

	objs, err := env.svc.Backup.Archives(env.ctx, admin, 10)
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	require.NoError(t, env.store.Incidents.ReplaceAll(env.ctx, nil))
	result, err := env.svc.Backup.Restore(env.ctx, admin, res.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Counts[repository.CollectionIncidents])

	arc.err = errors.New("bucket unavailable")
	res, err = env.svc.Backup.Export(env.ctx, admin, ExportRequest{})
	require.NoError(t, err, "archive failure does not fail the export")
	assert.Empty(t, res.ArchiveKey)
}

func TestBackupService_ArchiveNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Backup.Archives(env.ctx, env.user(repository.DemoAdminID), 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type brokenComplaints struct {
	repository.Repository[domain.CustomerComplaint]
}

func (brokenComplaints) ReplaceAll(context.Context, []domain.CustomerComplaint) error {
	return errors.New("connection reset")
}

func TestBackupService_ImportFailureLeavesEverySectionUntouched(t *testing.T) {
	env := newTestEnv(t)
	seedIncidents(t, env)
	env.store.Complaints = brokenComplaints{env.store.Complaints}
	admin := env.user(repository.DemoAdminID)

	body := []byte(`{"meta":{"version":"1.0"},"data":{` +
		`"safetyIncidents":[{"id":"inc-new","date":"2024-05-02T00:00:00Z"}],` +
		`"complaints":[{"id":"c-new"}]}}`)
	result, err := env.svc.Backup.Import(env.ctx, admin, body)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "connection reset")

	all, err := env.store.Incidents.All(env.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inc-apr", "inc-may-1", "inc-may-end", "inc-jun-1"}, incidentIDs(all))
	assert.NotContains(t, env.eventTypes(), "backup.imported")
}
