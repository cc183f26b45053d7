package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/index"
	"github.com/cloo-solutions/vocabtool/internal/pagination"
	"github.com/cloo-solutions/vocabtool/internal/registry"
	"github.com/cloo-solutions/vocabtool/internal/telemetry"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// LookupInput is one search request. A zero Limit means the default page size.
// A non-empty Cursor takes precedence over Offset.
type LookupInput struct {
	System  string
	Display string
	Limit   int
	Offset  int
	Cursor  string
}

// LookupOutput is one page of ranked results.
type LookupOutput struct {
	System     string                `json:"system"`
	Results    []domain.SearchResult `json:"results"`
	Offset     int                   `json:"offset"`
	Limit      int                   `json:"limit"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

// HasNextPage reports whether the page was full.
func (o *LookupOutput) HasNextPage() bool {
	return o.Limit > 0 && len(o.Results) >= o.Limit
}

// LookupConfig tunes paging and relevance.
type LookupConfig struct {
	DefaultLimit int
	MaxLimit     int
	Cutoff       float64
}

// DefaultLookupConfig returns the standard paging and cutoff.
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{
		DefaultLimit: DefaultPageSize,
		MaxLimit:     MaxPageSize,
		Cutoff:       index.DefaultCutoff,
	}
}

// SystemStatus describes a registered vocabulary and its index.
type SystemStatus struct {
	Name   string      `json:"name"`
	URI    string      `json:"uri"`
	Source string      `json:"source,omitempty"`
	Index  index.Stats `json:"index"`
}

// LookupService routes searches to the right vocabulary index.
type LookupService struct {
	registry *registry.Registry
	cfg      LookupConfig
	logger   *slog.Logger
}

// NewLookupService creates a LookupService.
func NewLookupService(reg *registry.Registry, cfg LookupConfig) *LookupService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultPageSize
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxPageSize
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.Cutoff == 0 {
		cfg.Cutoff = index.DefaultCutoff
	}
	return &LookupService{
		registry: reg,
		cfg:      cfg,
		logger:   slog.Default().With("component", "lookup"),
	}
}

// Lookup searches one vocabulary for display terms.
func (s *LookupService) Lookup(ctx context.Context, input LookupInput) (*LookupOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "LookupService.Lookup", telemetry.SpanAttributes{
		System:    input.System,
		Operation: "lookup",
	})
	defer span.End()

	vocab, err := s.registry.Resolve(input.System)
	if err != nil {
		return nil, err
	}

	terms := index.Sanitize(input.Display)
	if len(terms) == 0 {
		return nil, domain.ErrEmptyQuery
	}

	if input.Limit < 0 || input.Offset < 0 {
		return nil, domain.ErrInvalidPagination
	}
	limit := input.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return nil, domain.ErrLimitTooLarge
	}

	offset := input.Offset
	cursor, err := pagination.DecodeOffset(input.Cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	if cursor != nil {
		offset = cursor.Offset
	}

	start := time.Now()
	results, generation, err := vocab.Index.Search(ctx, terms, limit, offset, s.cfg.Cutoff)
	if err != nil {
		if domain.CodeOf(err) == domain.ErrCodeUnavailable {
			span.SetError(err)
		}
		return nil, err
	}
	if cursor != nil && cursor.Generation != generation {
		return nil, domain.ErrStaleCursor
	}

	s.logger.Debug("lookup",
		"system", vocab.System.Name,
		"terms", strings.Join(terms, " "),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &LookupOutput{
		System:     vocab.System.URI,
		Results:    results,
		Offset:     offset,
		Limit:      limit,
		NextCursor: pagination.NextOffset(generation, offset, limit, len(results)),
	}, nil
}

// Systems lists every registered vocabulary with its index status.
func (s *LookupService) Systems() []SystemStatus {
	vocabs := s.registry.Vocabularies()
	out := make([]SystemStatus, 0, len(vocabs))
	for _, v := range vocabs {
		out = append(out, SystemStatus{
			Name:   v.System.Name,
			URI:    v.System.URI,
			Source: v.System.Source,
			Index:  v.Index.Stats(),
		})
	}
	return out
}
