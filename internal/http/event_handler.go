package httpapi

import (
	"net/http"

	"qms-data/internal/events"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// EventHandler recent workflow audit events
type EventHandler struct {
	apiHandler
	reader events.Reader
}

func NewEventHandler(users *service.UserService, reader events.Reader, logger *zap.Logger) *EventHandler {
	return &EventHandler{apiHandler: apiHandler{users: users, logger: logger}, reader: reader}
}

func (r *Router) RegisterEventRoutes(h *EventHandler) {
	r.Handle(api(http.MethodGet, "/events"), h.Recent)
}

// Recent ?limit= newest first
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	evs, err := h.reader.Recent(r.Context(), limit)
	if evs == nil {
		evs = []events.Event{}
	}
	reply(h.apiHandler, w, "RecentEvents", evs, err)
}
