package server

import (
	"encoding/json"
	"net/http"

	"github.com/kagent-dev/codesession/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"kind": kind, "message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, http.StatusUnprocessableEntity, "InvalidRequest", "empty body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "InvalidRequest", err.Error())
		return false
	}
	return true
}

// statusForErr maps an internal error kind to the HTTP status spec.md
// §4.I requires: 401 auth, 408 timeout, 409 conflict, 422 malformed
// body, 500 infrastructure fault, 404 not found.
func statusForErr(err error) int {
	switch errs.KindOf(err) {
	case errs.KindAuthRequired, errs.KindAuthInvalid:
		return http.StatusUnauthorized
	case errs.KindTimeout, errs.KindToolTimeout:
		return http.StatusRequestTimeout
	case errs.KindConflict, errs.KindExecutorClosed:
		return http.StatusConflict
	case errs.KindInvalidRequest, errs.KindSchemaError, errs.KindArgumentTypeError,
		errs.KindMissingArgument, errs.KindUnknownArgument, errs.KindInvalidDepSpec:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindDuplicateSkill, errs.KindDuplicateTool:
		return http.StatusConflict
	case errs.KindRuntimeDepsDisabled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeErrFromErr(w http.ResponseWriter, err error) {
	writeError(w, statusForErr(err), string(errs.KindOf(err)), err.Error())
}
