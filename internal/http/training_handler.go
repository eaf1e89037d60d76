package httpapi

import (
	"net/http"
	"strings"

	"qms-data/internal/service"

	"go.uber.org/zap"
)

// TrainingHandler training assignments, completion and the matrix view
type TrainingHandler struct {
	apiHandler
	training *service.TrainingService
}

func NewTrainingHandler(users *service.UserService, training *service.TrainingService, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{apiHandler: apiHandler{users: users, logger: logger}, training: training}
}

func (r *Router) RegisterTrainingRoutes(h *TrainingHandler) {
	r.Handle(api(http.MethodGet, "/training"), h.List)
	r.Handle(api(http.MethodPost, "/training/assign"), h.Assign)
	r.Handle(api(http.MethodGet, "/training/matrix/{userId}"), h.Matrix)
	r.Handle(api(http.MethodGet, "/training/{id}"), h.Get)
	r.Handle(api(http.MethodPost, "/training/{id}/complete"), h.Complete)
}

// List supports ?userId= and ?documentId= besides the common list query.
func (h *TrainingHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	q := r.URL.Query()
	page, err := h.training.List(r.Context(), service.TrainingListRequest{
		ListRequest: listRequest(r),
		UserID:      strings.TrimSpace(q.Get("userId")),
		DocumentID:  strings.TrimSpace(q.Get("documentId")),
	})
	reply(h.apiHandler, w, "ListTraining", page, err)
}

func (h *TrainingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	rec, err := h.training.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetTraining", rec, err)
}

func (h *TrainingHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	m, err := h.training.Matrix(r.Context(), r.PathValue("userId"))
	reply(h.apiHandler, w, "TrainingMatrix", m, err)
}

func (h *TrainingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.AssignTrainingRequest
	if !h.body(w, r, &req) {
		return
	}
	recs, err := h.training.Assign(r.Context(), actor, req)
	reply(h.apiHandler, w, "AssignTraining", recs, err)
}

func (h *TrainingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Score *int `json:"score,omitempty"`
	}
	if !h.body(w, r, &payload) {
		return
	}
	rec, err := h.training.Complete(r.Context(), actor, r.PathValue("id"), payload.Score)
	reply(h.apiHandler, w, "CompleteTraining", rec, err)
}
