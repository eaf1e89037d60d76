package httpapi

import (
	"net/http"

	"qms-data/internal/domain"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// NCRHandler non-conformance reports and their disposition approval
type NCRHandler struct {
	apiHandler
	ncrs *service.NCRService
}

func NewNCRHandler(users *service.UserService, ncrs *service.NCRService, logger *zap.Logger) *NCRHandler {
	return &NCRHandler{apiHandler: apiHandler{users: users, logger: logger}, ncrs: ncrs}
}

func (r *Router) RegisterNCRRoutes(h *NCRHandler) {
	r.Handle(api(http.MethodGet, "/ncrs"), h.List)
	r.Handle(api(http.MethodPost, "/ncrs"), h.Create)
	r.Handle(api(http.MethodGet, "/ncrs/{id}"), h.Get)
	r.Handle(api(http.MethodPost, "/ncrs/{id}/disposition"), h.Disposition)
	r.Handle(api(http.MethodPost, "/ncrs/{id}/{action}"), h.Action)
}

func (h *NCRHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.ncrs.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListNCRs", page, err)
}

func (h *NCRHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	ncr, err := h.ncrs.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetNCR", ncr, err)
}

func (h *NCRHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.CreateNCRRequest
	if !h.body(w, r, &req) {
		return
	}
	ncr, err := h.ncrs.Create(r.Context(), actor, req)
	reply(h.apiHandler, w, "CreateNCR", ncr, err)
}

func (h *NCRHandler) Disposition(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var d domain.Disposition
	if !h.body(w, r, &d) {
		return
	}
	ncr, err := h.ncrs.SubmitDisposition(r.Context(), actor, r.PathValue("id"), d)
	reply(h.apiHandler, w, "SubmitDisposition", ncr, err)
}

// Action approve | reject | close | reopen
func (h *NCRHandler) Action(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("action"), []string{"approve", "reject", "close", "reopen"}, nil) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if !h.body(w, r, &payload) {
		return
	}

	ctx, id := r.Context(), r.PathValue("id")
	var (
		ncr *domain.NCRRecord
		err error
		op  string
	)
	switch r.PathValue("action") {
	case "approve":
		op = "ApproveDisposition"
		ncr, err = h.ncrs.ApproveDisposition(ctx, actor, id)
	case "reject":
		op = "RejectDisposition"
		ncr, err = h.ncrs.RejectDisposition(ctx, actor, id, payload.Reason)
	case "close":
		op = "CloseNCR"
		ncr, err = h.ncrs.Close(ctx, actor, id)
	case "reopen":
		op = "ReopenNCR"
		ncr, err = h.ncrs.Reopen(ctx, actor, id, payload.Reason)
	}
	reply(h.apiHandler, w, op, ncr, err)
}
