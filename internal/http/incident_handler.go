package httpapi

import (
	"net/http"

	"qms-data/internal/service"

	"go.uber.org/zap"
)

// IncidentHandler safety incident reporting
type IncidentHandler struct {
	apiHandler
	incidents *service.IncidentService
}

func NewIncidentHandler(users *service.UserService, incidents *service.IncidentService, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{apiHandler: apiHandler{users: users, logger: logger}, incidents: incidents}
}

func (r *Router) RegisterIncidentRoutes(h *IncidentHandler) {
	r.Handle(api(http.MethodGet, "/incidents"), h.List)
	r.Handle(api(http.MethodPost, "/incidents"), h.Report)
	r.Handle(api(http.MethodGet, "/incidents/summary"), h.Summary)
	r.Handle(api(http.MethodGet, "/incidents/{id}"), h.Get)
	r.Handle(api(http.MethodPut, "/incidents/{id}"), h.Update)
	r.Handle(api(http.MethodPost, "/incidents/{id}/{action}"), h.Action)
}

func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.incidents.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListIncidents", page, err)
}

func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	inc, err := h.incidents.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetIncident", inc, err)
}

// Summary counts for ?start=&end=
func (h *IncidentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	sum, err := h.incidents.Summary(r.Context(), dateRange(r))
	reply(h.apiHandler, w, "IncidentSummary", sum, err)
}

func (h *IncidentHandler) Report(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.IncidentRequest
	if !h.body(w, r, &req) {
		return
	}
	inc, err := h.incidents.Report(r.Context(), actor, req)
	reply(h.apiHandler, w, "ReportIncident", inc, err)
}

func (h *IncidentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.IncidentRequest
	if !h.body(w, r, &req) {
		return
	}
	inc, err := h.incidents.Update(r.Context(), actor, r.PathValue("id"), req)
	reply(h.apiHandler, w, "UpdateIncident", inc, err)
}

// Action investigate | close
func (h *IncidentHandler) Action(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("action"), []string{"investigate", "close"}, nil) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.IncidentRequest
	if !h.body(w, r, &req) {
		return
	}
	if r.PathValue("action") == "investigate" {
		inc, err := h.incidents.Investigate(r.Context(), actor, r.PathValue("id"))
		reply(h.apiHandler, w, "InvestigateIncident", inc, err)
		return
	}
	inc, err := h.incidents.Close(r.Context(), actor, r.PathValue("id"), req)
	reply(h.apiHandler, w, "CloseIncident", inc, err)
}
