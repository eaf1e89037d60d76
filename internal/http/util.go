package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"qms-data/internal/domain"
	"qms-data/internal/service"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidForm = errors.New("failed to parse form")
	errFileMissing = errors.New("file not found in request")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFile sends an attachment download.
func writeFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// dateRange reads ?start=YYYY-MM-DD&end=YYYY-MM-DD.
func dateRange(r *http.Request) domain.DateRange {
	q := r.URL.Query()
	return domain.DateRange{Start: strings.TrimSpace(q.Get("start")), End: strings.TrimSpace(q.Get("end"))}
}

// listRequest reads the common list query: search, status, start, end, page, size.
func listRequest(r *http.Request) service.ListRequest {
	q := r.URL.Query()
	return service.ListRequest{
		Search: strings.TrimSpace(q.Get("search")),
		Status: strings.TrimSpace(q.Get("status")),
		Range:  dateRange(r),
		Page:   parseInt(q.Get("page"), 1),
		Size:   parseInt(q.Get("size"), 20),
	}
}

// routeKnown checks the trailing path segment of a wildcard route: 404 when
// no method serves it, 405 when only another method does.
func routeKnown(w http.ResponseWriter, r *http.Request, segment string, served, otherMethod []string) bool {
	if slices.Contains(served, segment) {
		return true
	}
	if slices.Contains(otherMethod, segment) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	w.WriteHeader(http.StatusNotFound)
	return false
}
