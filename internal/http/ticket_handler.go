package httpapi

import (
	"net/http"

	"qms-data/internal/service"

	"go.uber.org/zap"
)

// TicketHandler QA tickets and lot inspections
type TicketHandler struct {
	apiHandler
	tickets     *service.TicketService
	inspections *service.InspectionService
}

func NewTicketHandler(users *service.UserService, tickets *service.TicketService, inspections *service.InspectionService, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{
		apiHandler:  apiHandler{users: users, logger: logger},
		tickets:     tickets,
		inspections: inspections,
	}
}

func (r *Router) RegisterTicketRoutes(h *TicketHandler) {
	r.Handle(api(http.MethodGet, "/tickets"), h.ListTickets)
	r.Handle(api(http.MethodPost, "/tickets"), h.CreateTicket)
	r.Handle(api(http.MethodGet, "/tickets/{id}"), h.GetTicket)
	r.Handle(api(http.MethodPost, "/tickets/{id}/{action}"), h.TicketAction)

	r.Handle(api(http.MethodGet, "/inspections"), h.ListInspections)
	r.Handle(api(http.MethodPost, "/inspections"), h.RecordInspection)
	r.Handle(api(http.MethodGet, "/inspections/{id}"), h.GetInspection)
	r.Handle(api(http.MethodPost, "/inspections/{id}/coa"), h.COA)
}

func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.tickets.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListTickets", page, err)
}

func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	t, err := h.tickets.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetTicket", t, err)
}

func (h *TicketHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.CreateTicketRequest
	if !h.body(w, r, &req) {
		return
	}
	t, err := h.tickets.Create(r.Context(), actor, req)
	reply(h.apiHandler, w, "CreateTicket", t, err)
}

// TicketAction assign | resolve | close | escalate
func (h *TicketHandler) TicketAction(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("action"), []string{"assign", "resolve", "close", "escalate"}, nil) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		AssigneeID       string `json:"assigneeId"`
		Resolution       string `json:"resolution"`
		QuantityAffected int    `json:"quantityAffected"`
		Description      string `json:"description"`
	}
	if !h.body(w, r, &payload) {
		return
	}

	ctx, id := r.Context(), r.PathValue("id")
	switch r.PathValue("action") {
	case "assign":
		t, err := h.tickets.Assign(ctx, actor, id, payload.AssigneeID)
		reply(h.apiHandler, w, "AssignTicket", t, err)
	case "resolve":
		t, err := h.tickets.Resolve(ctx, actor, id, payload.Resolution)
		reply(h.apiHandler, w, "ResolveTicket", t, err)
	case "close":
		t, err := h.tickets.Close(ctx, actor, id)
		reply(h.apiHandler, w, "CloseTicket", t, err)
	case "escalate":
		ncr, err := h.tickets.Escalate(ctx, actor, id, payload.QuantityAffected, payload.Description)
		reply(h.apiHandler, w, "EscalateTicket", ncr, err)
	}
}

func (h *TicketHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.inspections.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListInspections", page, err)
}

func (h *TicketHandler) GetInspection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	insp, err := h.inspections.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetInspection", insp, err)
}

func (h *TicketHandler) RecordInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.InspectionRequest
	if !h.body(w, r, &req) {
		return
	}
	insp, err := h.inspections.Record(r.Context(), actor, req)
	reply(h.apiHandler, w, "RecordInspection", insp, err)
}

// COA issues (or re-reads) the certificate of analysis of a passed lot.
func (h *TicketHandler) COA(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	coa, err := h.inspections.COA(r.Context(), actor, r.PathValue("id"))
	reply(h.apiHandler, w, "IssueCOA", coa, err)
}
