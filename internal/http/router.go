package httpapi

import (
	"net/http"

	"qms-data/internal/events"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// APIPrefix base path of every QMS route
const APIPrefix = "/qms/api/v1"

// Router wraps http.ServeMux. Routes use method patterns, so the mux answers
// 404 for unknown paths and 405 for a known path with the wrong method.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

// Handle registers h for pattern, e.g. "GET /qms/api/v1/documents/{id}".
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// api returns "<METHOD> /qms/api/v1<path>".
func api(method, path string) string {
	return method + " " + APIPrefix + path
}

// RegisterAPI registers every QMS route backed by svc.
func (r *Router) RegisterAPI(svc *service.Services, reader events.Reader) {
	users := svc.Users
	r.RegisterUserRoutes(NewUserHandler(users, r.logger))
	r.RegisterMasterDataRoutes(NewMasterDataHandler(users, svc.MasterData, r.logger))
	r.RegisterDocumentRoutes(NewDocumentHandler(users, svc.Documents, r.logger))
	r.RegisterIncidentRoutes(NewIncidentHandler(users, svc.Incidents, r.logger))
	r.RegisterTicketRoutes(NewTicketHandler(users, svc.Tickets, svc.Inspections, r.logger))
	r.RegisterNCRRoutes(NewNCRHandler(users, svc.NCRs, r.logger))
	r.RegisterComplaintRoutes(NewComplaintHandler(users, svc.Complaints, r.logger))
	r.RegisterTrainingRoutes(NewTrainingHandler(users, svc.Training, r.logger))
	r.RegisterBackupRoutes(NewBackupHandler(users, svc.Backup, r.logger))
	r.RegisterEventRoutes(NewEventHandler(users, reader, r.logger))
}
