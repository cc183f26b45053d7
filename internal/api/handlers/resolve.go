package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/vocabtool/internal/api"
	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/pagination"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

// DefaultMaxBatch bounds the number of concepts in one batch request.
const DefaultMaxBatch = 50

type ResolutionService interface {
	Resolve(ctx context.Context, input service.ResolveInput) (*domain.ResolutionResult, error)
	Recent(ctx context.Context, status domain.ResolutionStatus, limit int, cursor string) ([]service.ResolutionLogEntry, string, error)
}

type BatchResolver interface {
	ResolveAll(ctx context.Context, inputs []service.ResolveInput) ([]service.BatchItem, error)
}

type ResolveHandler struct {
	svc      ResolutionService
	batch    BatchResolver
	maxBatch int
}

// NewResolveHandler creates a ResolveHandler. batch may be nil.
func NewResolveHandler(svc ResolutionService, batch BatchResolver, maxBatch int) *ResolveHandler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &ResolveHandler{svc: svc, batch: batch, maxBatch: maxBatch}
}

type ResolveRequest struct {
	OriginalText string         `json:"originalText"`
	Focus        string         `json:"focus"`
	System       string         `json:"system"`
	Query        string         `json:"query"`
	Candidates   []domain.Query `json:"candidates,omitempty"`
}

func (r ResolveRequest) input() service.ResolveInput {
	return service.ResolveInput{
		OriginalText: r.OriginalText,
		Focus:        r.Focus,
		System:       r.System,
		Query:        r.Query,
		Candidates:   r.Candidates,
	}
}

// BatchRequest codes several concepts from one text. Concepts inherit the
// batch's originalText and system when they leave them blank.
type BatchRequest struct {
	OriginalText string           `json:"originalText"`
	System       string           `json:"system"`
	Concepts     []ResolveRequest `json:"concepts"`
}

type BatchResponse struct {
	Items []service.BatchItem `json:"items"`
}

// Resolve serves POST /resolve.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Resolve(r.Context(), req.input())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

// ResolveBatch serves POST /resolve/batch.
func (h *ResolveHandler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	if h.batch == nil {
		api.HandleError(w, domain.ErrOracleNotConfigured)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Concepts) == 0 {
		api.Error(w, http.StatusBadRequest, "concepts is required")
		return
	}
	if len(req.Concepts) > h.maxBatch {
		api.Error(w, http.StatusBadRequest, "too many concepts (max "+strconv.Itoa(h.maxBatch)+")")
		return
	}

	inputs := make([]service.ResolveInput, len(req.Concepts))
	for i, c := range req.Concepts {
		if c.OriginalText == "" {
			c.OriginalText = req.OriginalText
		}
		if c.System == "" {
			c.System = req.System
		}
		inputs[i] = c.input()
	}

	items, err := h.batch.ResolveAll(r.Context(), inputs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, BatchResponse{Items: items})
}

// Recent serves GET /resolutions.
func (h *ResolveHandler) Recent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := domain.ResolutionStatus(q.Get("status"))
	switch status {
	case "", domain.StatusAccepted, domain.StatusExhausted:
	default:
		api.Error(w, http.StatusBadRequest, "status must be accepted or exhausted")
		return
	}

	limit, err := intParam(q, "limit")
	if err != nil || limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	items, cursor, err := h.svc.Recent(r.Context(), status, limit, q.Get("cursor"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if items == nil {
		items = []service.ResolutionLogEntry{}
	}

	api.Success(w, http.StatusOK, pagination.PageResult[service.ResolutionLogEntry]{
		Items:   items,
		Cursor:  cursor,
		HasMore: cursor != "",
	})
}
