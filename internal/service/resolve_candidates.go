package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/telemetry"
)

// ResolveCandidates searches each proposed query in order, evaluating every
// round against the codings accepted so far. Grounded verdicts graded in
// CandidateGrades (A by default) are appended to the accepted list; the last
// one accepted is the result.
// Proposals stop once the failure budget is spent.
func (s *ResolutionService) ResolveCandidates(ctx context.Context, input ResolveInput) (*domain.ResolutionResult, error) {
	r, err := s.newRun(input)
	if err != nil {
		return nil, err
	}
	if r.req.Focus == "" {
		r.req.Focus = strings.TrimSpace(input.Candidates[0].QueryTerms)
	}

	ctx, span := telemetry.StartSpan(ctx, "ResolutionService.ResolveCandidates", telemetry.SpanAttributes{
		System:       input.System,
		ResolutionID: r.id,
		Operation:    "resolve_candidates",
	})
	defer span.End()

	start := time.Now()
	req := r.req
	for i, proposal := range input.Candidates {
		if req.Attempts() >= s.cfg.MaxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		terms := strings.TrimSpace(proposal.QueryTerms)
		system := strings.TrimSpace(proposal.System)
		if system == "" {
			system = strings.TrimSpace(input.System)
		}
		system = r.canonical(system)
		if terms == "" || req.HasFailed(system, terms) {
			r.logger.Debug("skipping proposal", "index", i, "system", system, "query", terms)
			continue
		}
		req.System, req.QueryTerms = system, terms

		results, lookupErr, err := s.search(ctx, r, false)
		if err != nil {
			return nil, err
		}
		verdict, err := s.evaluate(ctx, r, results)
		if err != nil {
			return nil, err
		}
		s.record(r, results, verdict, lookupErr)

		if match, ok := s.accept(verdict, results, s.cfg.CandidateGrades); ok {
			r.trace[len(r.trace)-1].Grounded = true
			req.Accepted = append(req.Accepted, domain.Candidate{
				Coding:    domain.Coding{System: req.System, Code: match.Code, Display: match.Display},
				Grade:     verdict.Grade,
				Rationale: verdict.Rationale,
			})
			continue
		}
		req.RecordFailure(s.failureRationale(verdict, results, lookupErr, s.cfg.CandidateGrades))
	}

	var result *domain.ResolutionResult
	if n := len(req.Accepted); n > 0 {
		last := req.Accepted[n-1]
		coding := last.Coding
		r.logger.Info("resolution accepted",
			"state", domain.StateAccepted,
			"code", coding.Code,
			"accepted", n,
			"attempts", len(r.trace),
		)
		result = &domain.ResolutionResult{
			ID:             r.id,
			Status:         domain.StatusAccepted,
			Coding:         &coding,
			Grade:          last.Grade,
			Rationale:      last.Rationale,
			Attempts:       len(r.trace),
			FailureHistory: nonNil(req.FailureHistory),
			Accepted:       req.Accepted,
			Trace:          r.trace,
		}
	} else {
		result = s.exhausted(r, "no proposal accepted")
	}

	s.finish(ctx, r, input, result, start)
	return result, nil
}
