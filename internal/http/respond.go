package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgeteer/internal/budget"
	"budgeteer/internal/services"
)

// Request bodies are small JSON documents; anything bigger than this
// is a mistake or an attack.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// decodeBody reads the request body as a single JSON document.
// Payloads stay untyped so the services can run their own field
// validation and report the exact violation.
func decodeBody(w http.ResponseWriter, r *http.Request) (any, error) {
	defer r.Body.Close()

	var v any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeObject is decodeBody for routes that need to look at fields
// (session IDs, row indexes) before handing the payload on.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	v, err := decodeBody(w, r)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("request body must be a JSON object")
	}
	return obj, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps a service failure onto a status code. The
// services already reduce every failure to a single user-facing
// message, so the body is always {"error": message}.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	var exists *budget.AlreadyExistsError
	switch {
	case errors.Is(err, services.ErrDatabaseUpdate),
		errors.Is(err, services.ErrDatabaseDelete):
		return http.StatusInternalServerError
	case errors.As(err, &exists),
		errors.Is(err, budget.ErrBudgetNotEmpty):
		return http.StatusConflict
	case errors.Is(err, budget.ErrNoBudget),
		errors.Is(err, budget.ErrNoPreviousBudget):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// requirePOST enforces the method for mutation routes.
func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}
