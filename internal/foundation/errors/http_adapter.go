package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes classified errors as JSON responses on the dev server control port.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter; a nil logger falls back to slog.Default().
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error    string       `json:"error"`
	Category string       `json:"category,omitempty"`
	Details  ErrorContext `json:"details,omitempty"`
}

// StatusCodeFor maps an error to an HTTP status code.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	classified, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch classified.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryBuild, CategoryTransform, CategoryRender:
		return http.StatusUnprocessableEntity
	case CategoryServer, CategoryRuntime, CategoryWatch:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON response.
func (a *HTTPErrorAdapter) WriteError(w http.ResponseWriter, err error) {
	status := a.StatusCodeFor(err)
	resp := HTTPErrorResponse{Error: err.Error()}
	if classified, ok := AsClassified(err); ok {
		resp.Error = classified.Message()
		resp.Category = string(classified.Category())
		if len(classified.Context()) > 0 {
			resp.Details = classified.Context()
		}
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("HTTP request failed", "status", status, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		a.logger.Debug("write error response", "error", encErr)
	}
}
