package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/oracle"
	"github.com/cloo-solutions/vocabtool/internal/telemetry"
)

// Lookuper runs one vocabulary search. Implemented by LookupService and the
// remote lookup client.
type Lookuper interface {
	Lookup(ctx context.Context, input LookupInput) (*LookupOutput, error)
}

// ResolutionConfig bounds the resolution loop.
type ResolutionConfig struct {
	MaxAttempts         int
	AcceptableGrades    []domain.Grade
	CandidateGrades     []domain.Grade // accepted by a multi-candidate pass
	LookupTimeout       time.Duration
	OracleTimeout       time.Duration
	PageSize            int
	RequireDisplayMatch bool
}

// DefaultResolutionConfig returns the standard loop bounds.
func DefaultResolutionConfig() ResolutionConfig {
	return ResolutionConfig{
		MaxAttempts:         5,
		AcceptableGrades:    []domain.Grade{domain.GradeA, domain.GradeB},
		CandidateGrades:     []domain.Grade{domain.GradeA},
		LookupTimeout:       10 * time.Second,
		OracleTimeout:       60 * time.Second,
		PageSize:            DefaultPageSize,
		RequireDisplayMatch: true,
	}
}

// ResolveInput is a caller's request to code one concept. When Candidates is
// non-empty the proposals are searched in order instead of following the
// oracle's reformulations.
type ResolveInput struct {
	OriginalText string         `json:"originalText"`
	Focus        string         `json:"focus"`
	System       string         `json:"system"`
	Query        string         `json:"query"`
	Candidates   []domain.Query `json:"candidates,omitempty"`
}

// ResolutionService runs the bounded query, evaluate, reformulate loop.
// It holds no per-run state and is safe for concurrent use.
type ResolutionService struct {
	lookup Lookuper
	oracle oracle.Oracle
	log    ResolutionLogRepository
	cfg    ResolutionConfig
	logger *slog.Logger
}

// NewResolutionService creates a ResolutionService. log may be nil.
func NewResolutionService(lookup Lookuper, o oracle.Oracle, log ResolutionLogRepository, cfg ResolutionConfig) *ResolutionService {
	defaults := DefaultResolutionConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if len(cfg.AcceptableGrades) == 0 {
		cfg.AcceptableGrades = defaults.AcceptableGrades
	}
	if len(cfg.CandidateGrades) == 0 {
		cfg.CandidateGrades = defaults.CandidateGrades
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	return &ResolutionService{
		lookup: lookup,
		oracle: o,
		log:    log,
		cfg:    cfg,
		logger: slog.Default().With("component", "resolver"),
	}
}

// run is the state owned by one resolution.
type run struct {
	id      string
	req     *domain.ResolutionRequest
	trace   []domain.AttemptTrace
	aliases map[string]string
	logger  *slog.Logger
}

// canonical maps a system name the run has already resolved to its URI.
func (r *run) canonical(system string) string {
	if uri, ok := r.aliases[strings.ToLower(strings.TrimSpace(system))]; ok {
		return uri
	}
	return system
}

func (r *run) learn(system, uri string) {
	if uri == "" {
		return
	}
	r.aliases[strings.ToLower(strings.TrimSpace(system))] = uri
	r.aliases[strings.ToLower(uri)] = uri
}

// Resolve codes one concept. Exhaustion is a normal result, not an error.
// Errors are returned for invalid initial requests and cancellation only.
func (s *ResolutionService) Resolve(ctx context.Context, input ResolveInput) (*domain.ResolutionResult, error) {
	if len(input.Candidates) > 0 {
		return s.ResolveCandidates(ctx, input)
	}
	r, err := s.newRun(input)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ResolutionService.Resolve", telemetry.SpanAttributes{
		System:       input.System,
		ResolutionID: r.id,
		Operation:    "resolve",
	})
	defer span.End()

	start := time.Now()
	result, err := s.loop(ctx, r)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, r, input, result, start)
	return result, nil
}

func (s *ResolutionService) newRun(input ResolveInput) (*run, error) {
	if s.oracle == nil {
		return nil, domain.ErrOracleNotConfigured
	}
	if strings.TrimSpace(input.System) == "" {
		return nil, domain.ErrMissingSystem
	}
	focus := strings.TrimSpace(input.Focus)
	query := strings.TrimSpace(input.Query)
	if focus == "" {
		focus = query
	}
	if query == "" {
		query = focus
	}
	if focus == "" && len(input.Candidates) == 0 {
		return nil, domain.ErrMissingFocus
	}

	id := uuid.NewString()
	return &run{
		id:      id,
		req:     domain.NewResolutionRequest(input.OriginalText, focus, strings.TrimSpace(input.System), query),
		aliases: make(map[string]string),
		logger:  s.logger.With("resolution_id", id),
	}, nil
}

func (s *ResolutionService) loop(ctx context.Context, r *run) (*domain.ResolutionResult, error) {
	req := r.req
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.logger.Debug("state", "state", domain.StateQuerying, "system", req.System, "query", req.QueryTerms)
		results, lookupErr, err := s.search(ctx, r, len(r.trace) == 0)
		if err != nil {
			return nil, err
		}

		r.logger.Debug("state", "state", domain.StateEvaluating, "results", len(results))
		verdict, err := s.evaluate(ctx, r, results)
		if err != nil {
			return nil, err
		}

		attempt := s.record(r, results, verdict, lookupErr)
		if match, ok := s.accept(verdict, results, s.cfg.AcceptableGrades); ok {
			r.trace[len(r.trace)-1].Grounded = true
			coding := domain.Coding{System: req.System, Code: match.Code, Display: match.Display}
			r.logger.Info("resolution accepted",
				"state", domain.StateAccepted,
				"code", coding.Code,
				"grade", verdict.Grade,
				"attempts", attempt,
			)
			return &domain.ResolutionResult{
				ID:             r.id,
				Status:         domain.StatusAccepted,
				Coding:         &coding,
				Grade:          verdict.Grade,
				Rationale:      verdict.Rationale,
				Attempts:       len(r.trace),
				FailureHistory: nonNil(req.FailureHistory),
				Trace:          r.trace,
			}, nil
		}

		req.RecordFailure(s.failureRationale(verdict, results, lookupErr, s.cfg.AcceptableGrades))
		telemetry.AddBreadcrumb(ctx, "resolution", fmt.Sprintf("attempt %d failed: %s %q", attempt, req.System, req.QueryTerms))

		if req.Attempts() >= s.cfg.MaxAttempts {
			return s.exhausted(r, "retry budget exhausted"), nil
		}

		next, ok := s.nextQuery(r, verdict)
		if !ok {
			return s.exhausted(r, "no untried reformulation"), nil
		}
		r.logger.Debug("state", "state", domain.StateReformulating, "next_system", next.System, "next_query", next.QueryTerms)
		req.System, req.QueryTerms = next.System, next.QueryTerms
	}
}

// search runs the current query. Lookup failures degrade to an empty result
// set and are returned as lookupErr; err is set only when the run must stop.
func (s *ResolutionService) search(ctx context.Context, r *run, initial bool) (results []domain.SearchResult, lookupErr error, err error) {
	req := r.req
	lookupCtx, cancel := withTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	out, lerr := s.lookup.Lookup(lookupCtx, LookupInput{
		System:  req.System,
		Display: req.QueryTerms,
		Limit:   s.cfg.PageSize,
	})
	if lerr == nil {
		r.learn(req.System, out.System)
		if out.System != "" {
			req.System = out.System
		}
		return out.Results, nil, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if domain.IsInvalidRequest(lerr) {
		if initial {
			return nil, nil, lerr
		}
		r.logger.Info("invalid reformulated query", "system", req.System, "query", req.QueryTerms, "error", lerr)
		return nil, lerr, nil
	}
	r.logger.Warn("lookup failed, continuing with no results", "system", req.System, "query", req.QueryTerms, "error", lerr)
	return nil, lerr, nil
}

// evaluate asks the oracle for a verdict. Oracle failures yield a nil verdict.
func (s *ResolutionService) evaluate(ctx context.Context, r *run, results []domain.SearchResult) (*domain.Verdict, error) {
	req := r.req
	oracleCtx, cancel := withTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	spanCtx, span := telemetry.StartSpan(oracleCtx, "oracle.Evaluate", telemetry.SpanAttributes{
		System:       req.System,
		ResolutionID: r.id,
		Attempt:      len(r.trace) + 1,
		Operation:    "evaluate",
	})
	defer span.End()

	verdict, err := s.oracle.Evaluate(spanCtx, oracle.Input{
		OriginalText:       req.OriginalText,
		Focus:              req.Focus,
		Query:              domain.Query{System: req.System, QueryTerms: req.QueryTerms},
		FailureHistory:     nonNil(req.FailureHistory),
		SearchResults:      nonNil(results),
		PreviousCandidates: req.Accepted,
	})
	if err == nil {
		return verdict, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	span.SetError(err)
	r.logger.Warn("oracle failure, treating as empty verdict", "error", err)
	return nil, nil
}

func (s *ResolutionService) record(r *run, results []domain.SearchResult, verdict *domain.Verdict, lookupErr error) int {
	t := domain.AttemptTrace{
		System:      r.req.System,
		QueryTerms:  r.req.QueryTerms,
		ResultCount: len(results),
	}
	if verdict != nil {
		t.Grade = verdict.Grade
		if top, ok := verdict.Top(); ok {
			t.UsedRealResultCode, t.UsedRealResultDisplay = matchResult(top, results)
		}
	} else {
		t.Error = "oracle returned no usable verdict"
	}
	if lookupErr != nil {
		t.Error = lookupErr.Error()
	}
	r.trace = append(r.trace, t)
	return len(r.trace)
}

// accept returns the search result backing the verdict's top candidate when
// the grade is in grades and the candidate is grounded.
func (s *ResolutionService) accept(verdict *domain.Verdict, results []domain.SearchResult, grades []domain.Grade) (domain.SearchResult, bool) {
	if verdict == nil || !slices.Contains(grades, verdict.Grade) {
		return domain.SearchResult{}, false
	}
	top, ok := verdict.Top()
	if !ok {
		return domain.SearchResult{}, false
	}
	return s.ground(top, results)
}

// ground finds the returned result matching c by code and, unless disabled, display.
func (s *ResolutionService) ground(c domain.Coding, results []domain.SearchResult) (domain.SearchResult, bool) {
	code := strings.TrimSpace(c.Code)
	display := strings.TrimSpace(c.Display)
	for _, r := range results {
		if strings.TrimSpace(r.Code) != code {
			continue
		}
		if s.cfg.RequireDisplayMatch && !strings.EqualFold(strings.TrimSpace(r.Display), display) {
			continue
		}
		return r, true
	}
	return domain.SearchResult{}, false
}

func (s *ResolutionService) failureRationale(verdict *domain.Verdict, results []domain.SearchResult, lookupErr error, grades []domain.Grade) string {
	if lookupErr != nil && domain.IsInvalidRequest(lookupErr) {
		return "invalid reformulated query: " + lookupErr.Error()
	}
	if verdict == nil {
		return domain.NoSuitableResult
	}
	if top, ok := verdict.Top(); ok && slices.Contains(grades, verdict.Grade) {
		if _, grounded := s.ground(top, results); !grounded {
			return fmt.Sprintf("candidate %s is not among the search results", top.Code)
		}
	}
	if verdict.Rationale == "" {
		return domain.NoSuitableResult
	}
	return verdict.Rationale
}

// nextQuery picks the oracle's reformulation, or failing that the top
// candidate's display, skipping anything already tried.
func (s *ResolutionService) nextQuery(r *run, verdict *domain.Verdict) (domain.Query, bool) {
	if verdict == nil {
		return domain.Query{}, false
	}
	req := r.req

	if q := verdict.NextQuery; q != nil && strings.TrimSpace(q.QueryTerms) != "" {
		system := strings.TrimSpace(q.System)
		if system == "" {
			system = req.System
		}
		system = r.canonical(system)
		if !req.HasFailed(system, q.QueryTerms) {
			return domain.Query{System: system, QueryTerms: strings.TrimSpace(q.QueryTerms)}, true
		}
		r.logger.Debug("skipping repeated reformulation", "system", system, "query", q.QueryTerms)
	}

	if top, ok := verdict.Top(); ok && strings.TrimSpace(top.Display) != "" {
		system := strings.TrimSpace(top.System)
		if system == "" {
			system = req.System
		}
		system = r.canonical(system)
		if !req.HasFailed(system, top.Display) {
			return domain.Query{System: system, QueryTerms: strings.TrimSpace(top.Display)}, true
		}
	}
	return domain.Query{}, false
}

func (s *ResolutionService) exhausted(r *run, reason string) *domain.ResolutionResult {
	req := r.req
	r.logger.Info("resolution exhausted",
		"state", domain.StateExhausted,
		"reason", reason,
		"attempts", len(r.trace),
		"failures", req.Attempts(),
	)
	rationale := reason
	if n := len(req.FailureHistory); n > 0 {
		rationale = req.FailureHistory[n-1].Rationale
	}
	return &domain.ResolutionResult{
		ID:             r.id,
		Status:         domain.StatusExhausted,
		Rationale:      rationale,
		Attempts:       len(r.trace),
		FailureHistory: nonNil(req.FailureHistory),
		Accepted:       req.Accepted,
		Trace:          r.trace,
	}
}

// finish writes the resolution log entry. Log failures never fail the resolution.
func (s *ResolutionService) finish(ctx context.Context, r *run, input ResolveInput, result *domain.ResolutionResult, start time.Time) {
	if s.log == nil {
		return
	}
	entry := ResolutionLogEntry{
		ID:           r.id,
		OriginalText: input.OriginalText,
		Focus:        r.req.Focus,
		System:       input.System,
		Query:        input.Query,
		Result:       *result,
		DurationMs:   int(time.Since(start).Milliseconds()),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.log.CreateResolutionLog(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("failed to write resolution log", "error", err)
	}
}

// Recent lists logged resolutions, newest first.
func (s *ResolutionService) Recent(ctx context.Context, status domain.ResolutionStatus, limit int, cursor string) ([]ResolutionLogEntry, string, error) {
	if s.log == nil {
		return nil, "", domain.ErrLogNotConfigured
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.log.ListResolutionLogs(ctx, status, limit, cursor)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// matchResult reports whether c's code appears among results and whether
// that result's display equals c's.
func matchResult(c domain.Coding, results []domain.SearchResult) (code, display bool) {
	want := strings.TrimSpace(c.Code)
	for _, r := range results {
		if strings.TrimSpace(r.Code) != want {
			continue
		}
		code = true
		if strings.EqualFold(strings.TrimSpace(r.Display), strings.TrimSpace(c.Display)) {
			return true, true
		}
	}
	return code, false
}
