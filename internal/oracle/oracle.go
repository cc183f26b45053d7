// Package oracle defines the contract with the external suggestion oracle
// that grades search results and proposes reformulated queries.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/time/rate"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// Input is everything the oracle sees for one evaluation.
type Input struct {
	OriginalText       string                 `json:"originalText,omitempty"`
	Focus              string                 `json:"focus"`
	Query              domain.Query           `json:"query"`
	FailureHistory     []domain.FailureRecord `json:"failureHistory"`
	SearchResults      []domain.SearchResult  `json:"searchResults"`
	PreviousCandidates []domain.Candidate     `json:"previousCandidates,omitempty"`
}

// Oracle evaluates search results for a concept.
type Oracle interface {
	Evaluate(ctx context.Context, in Input) (*domain.Verdict, error)
}

type wireCoding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type wireQuery struct {
	System string `json:"system"`
	Query  string `json:"query"`
}

type wireVerdict struct {
	CandidateCodings []wireCoding `json:"candidateCodings"`
	Grade            string       `json:"grade"`
	Rationale        string       `json:"rationale"`
	NextQuery        *wireQuery   `json:"nextQuery"`
}

func invalid(format string, args ...any) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeOracleFailure,
		"suggestion oracle returned an invalid verdict", fmt.Errorf(format, args...))
}

// ParseVerdict validates a raw oracle response. The payload must be a single
// JSON object with a grade of A, B or C; unknown fields are rejected. A
// surrounding markdown code fence is tolerated.
func ParseVerdict(raw []byte) (*domain.Verdict, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, invalid("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var w wireVerdict
	if err := dec.Decode(&w); err != nil {
		return nil, invalid("decode: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalid("trailing data after verdict")
	}

	grade := domain.Grade(strings.ToUpper(strings.TrimSpace(w.Grade)))
	if !grade.Valid() {
		return nil, invalid("grade %q is not one of A, B, C", w.Grade)
	}

	v := &domain.Verdict{
		Grade:     grade,
		Rationale: strings.TrimSpace(w.Rationale),
	}
	for i, c := range w.CandidateCodings {
		code := strings.TrimSpace(c.Code)
		if code == "" {
			return nil, invalid("candidate %d has no code", i)
		}
		v.CandidateCodings = append(v.CandidateCodings, domain.Coding{
			System:  strings.TrimSpace(c.System),
			Code:    code,
			Display: strings.TrimSpace(c.Display),
		})
	}
	if w.NextQuery != nil && strings.TrimSpace(w.NextQuery.Query) != "" {
		v.NextQuery = &domain.Query{
			System:     strings.TrimSpace(w.NextQuery.System),
			QueryTerms: strings.TrimSpace(w.NextQuery.Query),
		}
	}
	return v, nil
}

// RateLimited throttles calls to another Oracle.
type RateLimited struct {
	next    Oracle
	limiter *rate.Limiter
}

// NewRateLimited allows rps evaluations per second with the given burst.
// A non-positive rps disables throttling.
func NewRateLimited(next Oracle, rps float64, burst int) Oracle {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Evaluate waits for a token, then delegates.
func (r *RateLimited) Evaluate(ctx context.Context, in Input) (*domain.Verdict, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Evaluate(ctx, in)
}
