package httpapi

import (
	"net/http"

	"qms-data/internal/service"

	"go.uber.org/zap"
)

// UserHandler user administration and the caller's own profile
type UserHandler struct {
	apiHandler
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{apiHandler{users: users, logger: logger}}
}

func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.Handle(api(http.MethodGet, "/me"), h.Me)
	r.Handle(api(http.MethodGet, "/users"), h.List)
	r.Handle(api(http.MethodPost, "/users"), h.Create)
	r.Handle(api(http.MethodGet, "/users/{id}"), h.Get)
	r.Handle(api(http.MethodPut, "/users/{id}"), h.Update)
	r.Handle(api(http.MethodDelete, "/users/{id}"), h.Delete)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if actor, ok := h.actor(w, r); ok {
		writeJSON(w, http.StatusOK, Ok(actor))
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.users.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListUsers", page, err)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	u, err := h.users.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetUser", u, err)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.UserRequest
	if !h.body(w, r, &req) {
		return
	}
	u, err := h.users.Create(r.Context(), actor, req)
	reply(h.apiHandler, w, "CreateUser", u, err)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.UserRequest
	if !h.body(w, r, &req) {
		return
	}
	u, err := h.users.Update(r.Context(), actor, r.PathValue("id"), req)
	reply(h.apiHandler, w, "UpdateUser", u, err)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	deactivated, err := h.users.Delete(r.Context(), actor, r.PathValue("id"))
	reply(h.apiHandler, w, "DeleteUser", map[string]any{"deleted": !deactivated, "deactivated": deactivated}, err)
}
