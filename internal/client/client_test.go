package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qms-data/internal/domain"
	"qms-data/internal/events"
	httpapi "qms-data/internal/http"
	"qms-data/internal/repository"
	"qms-data/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	st := repository.NewMemoryStore()
	require.NoError(t, repository.SeedDemo(context.Background(), st, now.AddDate(0, -1, 0)))
	log := events.NewMemoryLog(10)
	svc := service.New(service.Deps{Store: st, Events: log, Logger: zap.NewNop(), Now: func() time.Time { return now }}, service.Options{})

	r := httpapi.NewRouter(zap.NewNop())
	r.RegisterAPI(svc, log)
	r.RegisterDoctorRoutes(httpapi.NewDoctorHandler(nil, nil, zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RangeExportImport(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := New(srv.URL+"/", repository.DemoAdminID, zap.NewNop())

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "System Admin", me.Name)

	r, err := c.GetRange(ctx)
	require.NoError(t, err)
	assert.True(t, r.IsZero())

	_, err = c.SetRange(ctx, domain.DateRange{Start: "2024-02-30"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, -1, apiErr.Code)

	r, err = c.SetRange(ctx, domain.DateRange{Start: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", r.Start)

	d, err := c.Export(ctx, "csv", []string{"users", "customers"}, domain.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "qms-backup-2024-06-10.csv", d.Filename)
	assert.True(t, strings.HasPrefix(d.ContentType, "text/csv"))
	assert.Contains(t, string(d.Body), "Range,2024-01-01 to ...")

	d, err = c.Export(ctx, "", nil, domain.DateRange{})
	require.NoError(t, err)
	assert.True(t, json.Valid(d.Body))

	res, err := c.Import(ctx, d.Filename, d.Body)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Counts["users"])
	assert.Equal(t, 3, res.Counts["masterItems"])

	_, err = c.Import(ctx, "broken.json", []byte("{"))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid backup file", apiErr.Message)

	_, err = c.Import(ctx, "empty.json", nil)
	assert.Error(t, err)
}

func TestClient_ExportErrorAndDocuments(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := New(srv.URL, repository.DemoSalesID, zap.NewNop())

	_, err := c.Export(ctx, "json", nil, domain.DateRange{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Contains(t, apiErr.Message, "ADMIN")

	page, err := c.ListDocuments(ctx, DocumentQuery{Status: "DRAFT", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)

	ghost := New(srv.URL, "ghost", zap.NewNop())
	_, err = ghost.Me(ctx)
	assert.True(t, errors.As(err, &apiErr))
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := New(srv.URL, "u", zap.NewNop())

	_, err := c.GetRange(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
