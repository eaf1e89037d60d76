package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms-data/internal/archive"
	"qms-data/internal/domain"
	"qms-data/internal/service"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	apiPrefix  = "/qms/api/v1"
	userHeader = "X-User-Id"
	resultOK   = 2000
)

// APIError a non-success result envelope
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qms api error: %s (code: %d)", e.Message, e.Code)
}

type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client qms-data API client acting as one user
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func New(baseURL, userID string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60*time.Second). // large exports
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader(userHeader, userID)

	return &Client{httpClient: httpClient, logger: logger}
}

// call performs req against path and decodes the envelope result into out.
func (c *Client) call(req *resty.Request, method, path string, out any) error {
	var env envelope
	resp, err := req.SetResult(&env).SetError(&env).Execute(method, apiPrefix+path)
	if err != nil {
		c.logger.Error("QMS API call failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode())
	}
	if env.Code != resultOK {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", path, err)
	}
	return nil
}

// Health is served outside the API prefix and the result envelope.
type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	resp, err := c.httpClient.R().SetContext(ctx).SetResult(&h).SetError(&h).Get("/healthz")
	if err != nil {
		return nil, fmt.Errorf("failed to call /healthz: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("/healthz: unexpected status %d", resp.StatusCode())
	}
	return &h, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.call(c.httpClient.R().SetContext(ctx), http.MethodGet, "/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetRange(ctx context.Context) (domain.DateRange, error) {
	var r domain.DateRange
	err := c.call(c.httpClient.R().SetContext(ctx), http.MethodGet, "/backup/settings", &r)
	return r, err
}

func (c *Client) SetRange(ctx context.Context, r domain.DateRange) (domain.DateRange, error) {
	var saved domain.DateRange
	err := c.call(c.httpClient.R().SetContext(ctx).SetBody(r), http.MethodPut, "/backup/settings", &saved)
	return saved, err
}

// Download an exported file
type Download struct {
	Filename    string
	ContentType string
	ArchiveKey  string
	Body        []byte
}

// Export downloads an export. Empty format means json, a zero range the
// server's configured range.
func (c *Client) Export(ctx context.Context, format string, modules []string, r domain.DateRange) (*Download, error) {
	req := c.httpClient.R().SetContext(ctx)
	if format != "" {
		req.SetQueryParam("format", format)
	}
	if len(modules) > 0 {
		req.SetQueryParam("modules", strings.Join(modules, ","))
	}
	if r.Start != "" {
		req.SetQueryParam("start", r.Start)
	}
	if r.End != "" {
		req.SetQueryParam("end", r.End)
	}

	resp, err := req.Get(apiPrefix + "/backup/export")
	if err != nil {
		c.logger.Error("Export call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("export: unexpected status %d", resp.StatusCode())
	}
	disposition := resp.Header().Get("Content-Disposition")
	if disposition == "" {
		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("failed to decode export error: %w", err)
		}
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}

	d := &Download{
		ContentType: resp.Header().Get("Content-Type"),
		ArchiveKey:  resp.Header().Get("X-Archive-Key"),
		Body:        resp.Body(),
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		d.Filename = params["filename"]
	}
	c.logger.Info("Export downloaded", zap.String("filename", d.Filename), zap.Int("bytes", len(d.Body)))
	return d, nil
}

// Import uploads a JSON backup file.
func (c *Client) Import(ctx context.Context, filename string, data []byte) (*service.ImportResult, error) {
	if len(data) == 0 {
		return nil, errors.New("backup file is empty")
	}
	var res service.ImportResult
	req := c.httpClient.R().SetContext(ctx).SetFileReader("file", filename, bytes.NewReader(data))
	if err := c.call(req, http.MethodPost, "/backup/import", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Archives(ctx context.Context, limit int) ([]archive.Object, error) {
	var objs []archive.Object
	req := c.httpClient.R().SetContext(ctx).SetQueryParam("limit", strconv.Itoa(limit))
	err := c.call(req, http.MethodGet, "/backup/archives", &objs)
	return objs, err
}

func (c *Client) Restore(ctx context.Context, key string) (*service.ImportResult, error) {
	var res service.ImportResult
	req := c.httpClient.R().SetContext(ctx).SetBody(map[string]string{"key": key})
	if err := c.call(req, http.MethodPost, "/backup/archives/restore", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DocumentQuery list filters
type DocumentQuery struct {
	Search string
	Status string
	Page   int
	Size   int
}

func (c *Client) ListDocuments(ctx context.Context, q DocumentQuery) (*service.Page[domain.Document], error) {
	req := c.httpClient.R().SetContext(ctx)
	if q.Search != "" {
		req.SetQueryParam("search", q.Search)
	}
	if q.Status != "" {
		req.SetQueryParam("status", q.Status)
	}
	if q.Page > 0 {
		req.SetQueryParam("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		req.SetQueryParam("size", strconv.Itoa(q.Size))
	}
	var page service.Page[domain.Document]
	if err := c.call(req, http.MethodGet, "/documents", &page); err != nil {
		return nil, err
	}
	return &page, nil
}
