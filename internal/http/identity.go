package httpapi

import (
	"net/http"

	"qms-data/internal/domain"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// UserHeader carries the caller's user id (mock identity, no credentials).
const UserHeader = "X-User-Id"

// apiHandler is embedded by every QMS handler: it resolves the caller and
// writes the result envelope.
type apiHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// actor resolves the caller; on failure the error result is already written.
func (h apiHandler) actor(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	u, err := h.users.Resolve(r.Context(), r.Header.Get(UserHeader))
	if err != nil {
		h.logger.Warn("Identity rejected",
			zap.String("path", r.URL.Path),
			zap.String("user_id", r.Header.Get(UserHeader)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return nil, false
	}
	return u, true
}

// body decodes the JSON body; on failure the error result is already written.
func (h apiHandler) body(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return false
	}
	return true
}

func (h apiHandler) fail(w http.ResponseWriter, op string, err error) {
	if expectedError(err) {
		h.logger.Warn(op+" rejected", zap.Error(err))
	} else {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, FailErr(err))
}

// reply writes Ok(v) or the failure of op.
func reply[T any](h apiHandler, w http.ResponseWriter, op string, v T, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(v))
}
