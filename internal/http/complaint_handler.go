package httpapi

import (
	"net/http"

	"qms-data/internal/domain"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// ComplaintHandler customer complaint handling
type ComplaintHandler struct {
	apiHandler
	complaints *service.ComplaintService
}

func NewComplaintHandler(users *service.UserService, complaints *service.ComplaintService, logger *zap.Logger) *ComplaintHandler {
	return &ComplaintHandler{apiHandler: apiHandler{users: users, logger: logger}, complaints: complaints}
}

var complaintActions = []string{"investigate", "investigation", "respond", "close", "reject", "reopen", "ncr"}

func (r *Router) RegisterComplaintRoutes(h *ComplaintHandler) {
	r.Handle(api(http.MethodGet, "/complaints"), h.List)
	r.Handle(api(http.MethodPost, "/complaints"), h.Create)
	r.Handle(api(http.MethodGet, "/complaints/{id}"), h.Get)
	r.Handle(api(http.MethodGet, "/complaints/{id}/{view}"), h.Notice)
	r.Handle(api(http.MethodPost, "/complaints/{id}/{action}"), h.Action)
}

func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.complaints.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListComplaints", page, err)
}

func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	c, err := h.complaints.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetComplaint", c, err)
}

// Notice customer facing summary of a complaint
func (h *ComplaintHandler) Notice(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("view"), []string{"notice"}, complaintActions) {
		return
	}
	if _, ok := h.actor(w, r); !ok {
		return
	}
	n, err := h.complaints.Notice(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "ComplaintNotice", n, err)
}

func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.CreateComplaintRequest
	if !h.body(w, r, &req) {
		return
	}
	c, err := h.complaints.Create(r.Context(), actor, req)
	reply(h.apiHandler, w, "CreateComplaint", c, err)
}

// Action investigate | investigation | respond | close | reject | reopen | ncr
func (h *ComplaintHandler) Action(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("action"), complaintActions, []string{"notice"}) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		service.InvestigationRequest
		Response         string `json:"response"`
		Reason           string `json:"reason"`
		QuantityAffected int    `json:"quantityAffected"`
		Description      string `json:"description"`
	}
	if !h.body(w, r, &payload) {
		return
	}

	ctx, id := r.Context(), r.PathValue("id")
	var (
		c   *domain.CustomerComplaint
		err error
		op  string
	)
	switch r.PathValue("action") {
	case "investigate":
		op = "StartInvestigation"
		c, err = h.complaints.StartInvestigation(ctx, actor, id)
	case "investigation":
		op = "RecordInvestigation"
		c, err = h.complaints.RecordInvestigation(ctx, actor, id, payload.InvestigationRequest)
	case "respond":
		op = "RespondComplaint"
		c, err = h.complaints.Respond(ctx, actor, id, payload.Response)
	case "close":
		op = "CloseComplaint"
		c, err = h.complaints.Close(ctx, actor, id)
	case "reject":
		op = "RejectComplaint"
		c, err = h.complaints.Reject(ctx, actor, id, payload.Reason)
	case "reopen":
		op = "ReopenComplaint"
		c, err = h.complaints.Reopen(ctx, actor, id, payload.Reason)
	case "ncr":
		ncr, err := h.complaints.RaiseNCR(ctx, actor, id, payload.QuantityAffected, payload.Description)
		reply(h.apiHandler, w, "RaiseComplaintNCR", ncr, err)
		return
	}
	reply(h.apiHandler, w, op, c, err)
}
