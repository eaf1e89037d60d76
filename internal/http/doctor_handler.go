package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DoctorHandler health and readiness endpoints
type DoctorHandler struct {
	backends []backend
	logger   *zap.Logger
	now      func() time.Time
}

// backend one optional dependency; backends left nil are reported as not configured
// and served by the memory fallbacks.
type backend struct {
	name string
	ping func(ctx context.Context) error
}

var backendNames = []string{"database", "redis"}

func NewDoctorHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *DoctorHandler {
	d := &DoctorHandler{logger: logger, now: time.Now}
	if db != nil {
		d.backends = append(d.backends, backend{name: "database", ping: db.PingContext})
	}
	if redisClient != nil {
		d.backends = append(d.backends, backend{name: "redis", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return d
}

// check pings every configured backend; the map holds nil for healthy ones.
func (d *DoctorHandler) check(ctx context.Context, timeout time.Duration) map[string]error {
	out := make(map[string]error, len(d.backends))
	for _, p := range d.backends {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		out[p.name] = p.ping(pctx)
		cancel()
	}
	return out
}

// HealthCheckResponse health check body
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (d *DoctorHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	results := d.check(r.Context(), 2*time.Second)

	resp := HealthCheckResponse{Status: "healthy", Timestamp: d.now(), Services: map[string]string{}}
	for _, name := range backendNames {
		err, configured := results[name]
		switch {
		case !configured:
			resp.Services[name] = "not configured"
		case err != nil:
			resp.Status = "unhealthy"
			resp.Services[name] = "unhealthy: " + err.Error()
		default:
			resp.Services[name] = "healthy"
		}
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
		d.logger.Warn("Health check failed", zap.Any("services", resp.Services))
	}
	writeJSON(w, code, resp)
}

// Ready unconfigured backends count as ready.
func (d *DoctorHandler) Ready(w http.ResponseWriter, r *http.Request) {
	results := d.check(r.Context(), time.Second)

	ready := true
	checks := map[string]bool{}
	for _, name := range backendNames {
		err := results[name]
		checks[name] = err == nil
		ready = ready && err == nil
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": ready, "checks": checks})
}

func (r *Router) RegisterDoctorRoutes(doctor *DoctorHandler) {
	r.Handle("GET /healthz", doctor.HealthCheck)
	r.Handle("GET /readyz", doctor.Ready)
}
