package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLog_WritesRouteAndSystem(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Get("/lookup-code", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown vocabulary system"}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/lookup-code?system=icd99&display=fever", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "/lookup-code", entry["route"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "icd99", entry["system"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "10.0.0.1", entry["remote_addr"])
	assert.NotContains(t, entry, "client_id")
}

func TestAccessLog_ServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := AccessLog(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search?terminology=loinc", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "/search", entry["route"])
	assert.Equal(t, "loinc", entry["system"])
}

func TestRequestID_DropsSpoofedClientID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(ClientIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/systems", nil)
	req.Header.Set(ClientIDHeader, "admin")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, seen)
}

func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	assert.Equal(t, http.StatusOK, rec.Status())

	n, err := rec.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, 5, rec.bytes)
}

func TestSentryMiddleware_PassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(SentryMiddleware)
	r.Get("/systems", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/systems", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	assert.Panics(t, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
}

func TestRequestID_RejectsUnusableIDs(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for _, bad := range []string{"has space", string(make([]byte, 200))} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, bad)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, bad, seen)
		assert.Len(t, seen, 36)
	}
}

func TestMaxBodyBytes_Disabled(t *testing.T) {
	handler := MaxBodyBytes(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resolve/batch", stringsReader("0123456789")))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
