package httpapi

import (
	"io"
	"mime"
	"net/http"

	"qms-data/internal/domain"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

const maxImportBytes = 50 << 20

// BackupHandler range settings, export, import and the S3 archive
type BackupHandler struct {
	apiHandler
	backup *service.BackupService
}

func NewBackupHandler(users *service.UserService, backup *service.BackupService, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{apiHandler: apiHandler{users: users, logger: logger}, backup: backup}
}

func (r *Router) RegisterBackupRoutes(h *BackupHandler) {
	r.Handle(api(http.MethodGet, "/backup/settings"), h.GetSettings)
	r.Handle(api(http.MethodPut, "/backup/settings"), h.SaveSettings)
	r.Handle(api(http.MethodGet, "/backup/export"), h.Export)
	r.Handle(api(http.MethodPost, "/backup/import"), h.Import)
	r.Handle(api(http.MethodGet, "/backup/archives"), h.Archives)
	r.Handle(api(http.MethodPost, "/backup/archives/restore"), h.Restore)
}

func (h *BackupHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	rng, err := h.backup.GetRange(r.Context())
	reply(h.apiHandler, w, "GetBackupRange", rng, err)
}

func (h *BackupHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var rng domain.DateRange
	if !h.body(w, r, &rng) {
		return
	}
	saved, err := h.backup.SetRange(r.Context(), actor, rng)
	reply(h.apiHandler, w, "SetBackupRange", saved, err)
}

// Export ?format=json|csv|xlsx&modules=a,b&start=&end=; the file is sent as
// an attachment, failures as the JSON envelope.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	res, err := h.backup.Export(r.Context(), actor, service.ExportRequest{
		Format:  q.Get("format"),
		Range:   dateRange(r),
		Modules: q["modules"],
	})
	if err != nil {
		h.fail(w, "Export", err)
		return
	}
	if res.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", res.ArchiveKey)
	}
	writeFile(w, res.ContentType, res.Filename, res.Body)
}

// Import accepts the backup either as a multipart "file" field or as the raw
// JSON request body.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	data, err := readImport(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	res, err := h.backup.Import(r.Context(), actor, data)
	reply(h.apiHandler, w, "Import", res, err)
}

func readImport(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	}
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, errInvalidForm
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errFileMissing
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxImportBytes))
}

func (h *BackupHandler) Archives(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	objs, err := h.backup.Archives(r.Context(), actor, parseInt(r.URL.Query().Get("limit"), 50))
	reply(h.apiHandler, w, "ListArchives", objs, err)
}

func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Key string `json:"key"`
	}
	if !h.body(w, r, &payload) {
		return
	}
	res, err := h.backup.Restore(r.Context(), actor, payload.Key)
	reply(h.apiHandler, w, "RestoreArchive", res, err)
}
