package httpapi

import (
	"net/http"

	"qms-data/internal/service"

	"go.uber.org/zap"
)

// DocumentHandler document control: drafts, approval, revisions
type DocumentHandler struct {
	apiHandler
	documents *service.DocumentService
}

func NewDocumentHandler(users *service.UserService, documents *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{apiHandler: apiHandler{users: users, logger: logger}, documents: documents}
}

func (r *Router) RegisterDocumentRoutes(h *DocumentHandler) {
	r.Handle(api(http.MethodGet, "/documents"), h.List)
	r.Handle(api(http.MethodPost, "/documents"), h.Create)
	r.Handle(api(http.MethodGet, "/documents/history/{docNumber}"), h.History)
	r.Handle(api(http.MethodGet, "/documents/{id}"), h.Get)
	r.Handle(api(http.MethodPut, "/documents/{id}"), h.Update)
	r.Handle(api(http.MethodDelete, "/documents/{id}"), h.Delete)
	r.Handle(api(http.MethodGet, "/documents/{id}/{view}"), h.View)
	r.Handle(api(http.MethodPost, "/documents/{id}/{action}"), h.Action)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	page, err := h.documents.List(r.Context(), listRequest(r))
	reply(h.apiHandler, w, "ListDocuments", page, err)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	doc, err := h.documents.Get(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "GetDocument", doc, err)
}

func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	docs, err := h.documents.History(r.Context(), r.PathValue("docNumber"))
	reply(h.apiHandler, w, "DocumentHistory", docs, err)
}

var documentActions = []string{"submit", "approve", "reject", "revise", "archive"}

// View diff
func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("view"), []string{"diff"}, documentActions) {
		return
	}
	if _, ok := h.actor(w, r); !ok {
		return
	}
	diff, err := h.documents.Diff(r.Context(), r.PathValue("id"))
	reply(h.apiHandler, w, "DocumentDiff", diff, err)
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.DocumentRequest
	if !h.body(w, r, &req) {
		return
	}
	doc, err := h.documents.Create(r.Context(), actor, req)
	reply(h.apiHandler, w, "CreateDocument", doc, err)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.DocumentRequest
	if !h.body(w, r, &req) {
		return
	}
	doc, err := h.documents.Update(r.Context(), actor, r.PathValue("id"), req)
	reply(h.apiHandler, w, "UpdateDocument", doc, err)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	err := h.documents.Delete(r.Context(), actor, r.PathValue("id"))
	reply(h.apiHandler, w, "DeleteDocument", map[string]bool{"deleted": err == nil}, err)
}

// Action submit | approve | reject | revise | archive
func (h *DocumentHandler) Action(w http.ResponseWriter, r *http.Request) {
	if !routeKnown(w, r, r.PathValue("action"), documentActions, []string{"diff"}) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Comment string `json:"comment"`
		Reason  string `json:"reason"`
	}
	if !h.body(w, r, &payload) {
		return
	}

	ctx, id := r.Context(), r.PathValue("id")
	switch r.PathValue("action") {
	case "submit":
		doc, err := h.documents.Submit(ctx, actor, id)
		reply(h.apiHandler, w, "SubmitDocument", doc, err)
	case "approve":
		doc, err := h.documents.Approve(ctx, actor, id, payload.Comment)
		reply(h.apiHandler, w, "ApproveDocument", doc, err)
	case "reject":
		doc, err := h.documents.Reject(ctx, actor, id, payload.Reason)
		reply(h.apiHandler, w, "RejectDocument", doc, err)
	case "revise":
		doc, err := h.documents.Revise(ctx, actor, id)
		reply(h.apiHandler, w, "ReviseDocument", doc, err)
	case "archive":
		doc, err := h.documents.Archive(ctx, actor, id, payload.Reason)
		reply(h.apiHandler, w, "ArchiveDocument", doc, err)
	}
}
