package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nvallejo/weft/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an error to an HTTP status and writes it. Engine
// errors carry their code in the body so clients can branch without
// parsing messages.
func writeEngineError(w http.ResponseWriter, err error) {
	var engErr *schema.EngineError
	if !errors.As(err, &engErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]any{
		"error": engErr.Message,
		"code":  engErr.Code,
	}
	if len(engErr.Details) > 0 {
		body["details"] = engErr.Details
	}
	if engErr.NodeID != "" {
		body["node_id"] = engErr.NodeID
	}
	writeJSON(w, statusFor(engErr.Code), body)
}

// statusFor maps an engine error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation, schema.ErrCodeCompile:
		return http.StatusBadRequest
	case schema.ErrCodeConflict, schema.ErrCodeInvalidTransition:
		return http.StatusConflict
	case schema.ErrCodeCredentialDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryInt64 extracts an int64 query param with a default value.
func queryInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
