package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestBearerAuth_Success(t *testing.T) {
	mockValidator := new(MockTokenValidator)
	mockValidator.On("ValidateToken", mock.Anything, "s3cret").Return("api", nil)

	var capturedClientID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedClientID = GetClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := BearerAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "api", capturedClientID)
	mockValidator.AssertExpectations(t)
}

func TestBearerAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic auth", "Basic abc123", "invalid authorization format"},
		{"wrong token", "Bearer nope", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockValidator := new(MockTokenValidator)
			mockValidator.On("ValidateToken", mock.Anything, "nope").Return("", errors.New("invalid token"))

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})

			req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			BearerAuth(mockValidator)(handler).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestStaticToken(t *testing.T) {
	ctx := context.Background()

	id, err := StaticToken("s3cret").ValidateToken(ctx, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "api", id)

	_, err = StaticToken("s3cret").ValidateToken(ctx, "s3cre")
	assert.Error(t, err)

	_, err = StaticToken("").ValidateToken(ctx, "")
	assert.Error(t, err)
}

func TestGetClientID_MissingContext(t *testing.T) {
	assert.Equal(t, "", GetClientID(context.Background()))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-1", seen)
}

func TestMaxBodyBytes(t *testing.T) {
	handler := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/resolve", stringsReader("0123456789"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
