package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// SuccessResponse is the {"data": ...} envelope used by every route except
// /lookup-code.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:    http.StatusBadRequest,
	domain.ErrCodeNotFound:      http.StatusNotFound,
	domain.ErrCodeUnavailable:   http.StatusServiceUnavailable,
	domain.ErrCodeOracleFailure: http.StatusBadGateway,
	domain.ErrCodeNotConfigured: http.StatusNotImplemented,
	domain.ErrCodeUnauthorized:  http.StatusUnauthorized,
}

// JSON encodes body with the given status. A nil body writes headers only.
func JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "status", status, "error", err)
	}
}

func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps an error's domain code to a status. Unclassified
// errors are 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an error envelope. Only domain errors expose
// their message.
func HandleError(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		slog.Error("unhandled error", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	JSON(w, DomainErrorToHTTP(err), ErrorResponse{Error: de.Message, Code: de.Code})
}
