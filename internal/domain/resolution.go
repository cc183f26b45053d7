package domain

import "strings"

// Grade is the oracle's quality assessment of its best candidate.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Valid reports whether g is one of the known grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC:
		return true
	}
	return false
}

// ParseGrades parses a comma separated grade list such as "A,B".
func ParseGrades(s string) ([]Grade, error) {
	var grades []Grade
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		g := Grade(part)
		if !g.Valid() {
			return nil, NewDomainError(ErrCodeValidation, "unknown grade "+part)
		}
		grades = append(grades, g)
	}
	if len(grades) == 0 {
		return nil, NewDomainError(ErrCodeValidation, "at least one acceptable grade is required")
	}
	return grades, nil
}

// ResolutionState is a step of the resolution loop.
type ResolutionState string

const (
	StateQuerying      ResolutionState = "querying"
	StateEvaluating    ResolutionState = "evaluating"
	StateAccepted      ResolutionState = "accepted"
	StateReformulating ResolutionState = "reformulating"
	StateExhausted     ResolutionState = "exhausted"
)

// ResolutionStatus is the terminal outcome of a resolution.
type ResolutionStatus string

const (
	StatusAccepted  ResolutionStatus = "accepted"
	StatusExhausted ResolutionStatus = "exhausted"
)

// NoSuitableResult is the failure rationale used when the oracle gives none.
const NoSuitableResult = "no suitable result"

// FailureRecord is one unsuccessful attempt.
type FailureRecord struct {
	System     string `json:"system"`
	QueryTerms string `json:"query"`
	Rationale  string `json:"rationale"`
}

// Verdict is the oracle's structured evaluation of one search round.
type Verdict struct {
	CandidateCodings []Coding `json:"candidateCodings"`
	Grade            Grade    `json:"grade"`
	Rationale        string   `json:"rationale"`
	NextQuery        *Query   `json:"nextQuery,omitempty"`
}

// Top returns the first candidate coding, if any.
func (v *Verdict) Top() (Coding, bool) {
	if v == nil || len(v.CandidateCodings) == 0 {
		return Coding{}, false
	}
	return v.CandidateCodings[0], true
}

// Candidate is an accepted coding together with the grade that accepted it.
type Candidate struct {
	Coding    Coding `json:"coding"`
	Grade     Grade  `json:"grade"`
	Rationale string `json:"rationale"`
}

// ResolutionRequest is the mutable state of one resolution run.
// It is owned by a single run and never shared.
type ResolutionRequest struct {
	OriginalText   string
	Focus          string
	System         string
	QueryTerms     string
	FailureHistory []FailureRecord
	Accepted       []Candidate
}

// NewResolutionRequest creates the request for the caller's initial query.
func NewResolutionRequest(originalText, focus, system, queryTerms string) *ResolutionRequest {
	return &ResolutionRequest{
		OriginalText: originalText,
		Focus:        focus,
		System:       system,
		QueryTerms:   queryTerms,
	}
}

// RecordFailure appends a failure for the current query.
func (r *ResolutionRequest) RecordFailure(rationale string) {
	if strings.TrimSpace(rationale) == "" {
		rationale = NoSuitableResult
	}
	r.FailureHistory = append(r.FailureHistory, FailureRecord{
		System:     r.System,
		QueryTerms: r.QueryTerms,
		Rationale:  rationale,
	})
}

// HasFailed reports whether (system, queryTerms) already appears in the history.
func (r *ResolutionRequest) HasFailed(system, queryTerms string) bool {
	for _, f := range r.FailureHistory {
		if sameQuery(f.System, f.QueryTerms, system, queryTerms) {
			return true
		}
	}
	return false
}

// Attempts returns the number of failed attempts so far.
func (r *ResolutionRequest) Attempts() int {
	return len(r.FailureHistory)
}

func sameQuery(s1, q1, s2, q2 string) bool {
	return strings.EqualFold(strings.TrimSpace(s1), strings.TrimSpace(s2)) &&
		strings.EqualFold(strings.Join(strings.Fields(q1), " "), strings.Join(strings.Fields(q2), " "))
}

// AttemptTrace records what happened on one loop iteration. The
// UsedRealResult flags compare the top candidate against the returned
// results; they are never taken from the oracle.
type AttemptTrace struct {
	System                string `json:"system"`
	QueryTerms            string `json:"query"`
	ResultCount           int    `json:"resultCount"`
	Grade                 Grade  `json:"grade,omitempty"`
	Grounded              bool   `json:"grounded"`
	UsedRealResultCode    bool   `json:"usedRealResultCode"`
	UsedRealResultDisplay bool   `json:"usedRealResultDisplay"`
	Error                 string `json:"error,omitempty"`
}

// ResolutionResult is the terminal outcome returned to the caller.
type ResolutionResult struct {
	ID             string           `json:"id,omitempty"`
	Status         ResolutionStatus `json:"status"`
	Coding         *Coding          `json:"coding,omitempty"`
	Grade          Grade            `json:"grade,omitempty"`
	Rationale      string           `json:"rationale,omitempty"`
	Attempts       int              `json:"attempts"`
	FailureHistory []FailureRecord  `json:"failureHistory"`
	Accepted       []Candidate      `json:"accepted,omitempty"`
	Trace          []AttemptTrace   `json:"trace,omitempty"`
}
