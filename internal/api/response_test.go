package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestJSON_WritesBodyAndHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]int{"entries": 41})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]int
	decode(t, w, &body)
	assert.Equal(t, 41, body["entries"])
}

func TestJSON_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestSuccess_DataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, http.StatusOK, []string{"snomed", "loinc"})

	var body struct {
		Data []string `json:"data"`
	}
	decode(t, w, &body)
	assert.Equal(t, []string{"snomed", "loinc"}, body.Data)
}

func TestError_OmitsEmptyCode(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusRequestEntityTooLarge, "request body too large")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"request body too large"}`, w.Body.String())
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{domain.ErrStaleCursor, http.StatusBadRequest},
		{domain.ErrUnknownSystem, http.StatusNotFound},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{domain.ErrOracleFailure, http.StatusBadGateway},
		{domain.ErrOracleNotConfigured, http.StatusNotImplemented},
		{domain.ErrLogNotConfigured, http.StatusNotImplemented},
		{domain.NewDomainError(domain.ErrCodeUnauthorized, "invalid token"), http.StatusUnauthorized},
		{domain.NewDomainError(domain.ErrCodeInternalError, "boom"), http.StatusInternalServerError},
		{domain.NewDomainError("TEAPOT", "unmapped"), http.StatusInternalServerError},
		{fmt.Errorf("lookup snomed: %w", domain.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "unknown vocabulary system", fmt.Errorf(`"icd99"`)))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, ErrorResponse{Error: "unknown vocabulary system", Code: domain.ErrCodeNotFound}, body)
}

func TestHandleError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, fmt.Errorf("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}
