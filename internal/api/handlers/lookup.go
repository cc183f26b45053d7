package handlers

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/cloo-solutions/vocabtool/internal/api"
	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

type LookupService interface {
	Lookup(ctx context.Context, input service.LookupInput) (*service.LookupOutput, error)
	Systems() []service.SystemStatus
}

type LookupHandler struct {
	svc LookupService
}

func NewLookupHandler(svc LookupService) *LookupHandler {
	return &LookupHandler{svc: svc}
}

// LookupResponse is the lookup wire envelope. It is written bare, without
// the data wrapper, for compatibility with existing lookup clients.
type LookupResponse struct {
	System  string                `json:"system"`
	Results []domain.SearchResult `json:"results"`
	Links   LookupLinks           `json:"links"`
}

type LookupLinks struct {
	NextPageOfResults string `json:"nextPageOfResults,omitempty"`
}

// Lookup serves GET /lookup-code and GET /$lookup-code.
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, "system")
}

// Search serves the legacy GET /search?terminology= route.
func (h *LookupHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, "terminology")
}

func (h *LookupHandler) lookup(w http.ResponseWriter, r *http.Request, systemParam string) {
	q := r.URL.Query()

	limit, err := intParam(q, "limit")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	out, err := h.svc.Lookup(r.Context(), service.LookupInput{
		System:  q.Get(systemParam),
		Display: q.Get("display"),
		Limit:   limit,
		Offset:  offset,
		Cursor:  q.Get("cursor"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := LookupResponse{
		System:  out.System,
		Results: out.Results,
	}
	if out.Results == nil {
		resp.Results = []domain.SearchResult{}
	}
	if out.NextCursor != "" {
		next := url.Values{}
		next.Set(systemParam, q.Get(systemParam))
		next.Set("display", q.Get("display"))
		next.Set("limit", strconv.Itoa(out.Limit))
		next.Set("cursor", out.NextCursor)
		resp.Links.NextPageOfResults = "./" + path.Base(r.URL.Path) + "?" + next.Encode()
	}

	api.JSON(w, http.StatusOK, resp)
}

// Systems serves GET /systems.
func (h *LookupHandler) Systems(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Systems())
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
