package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// Instruction is the fixed system message sent with every evaluation.
const Instruction = `You are a clinical terminology coding assistant.
You receive a JSON object describing a clinical concept ("focus", taken from "originalText"),
the terminology query that was run ("query"), the results it returned ("searchResults"),
earlier failed queries ("failureHistory") and codings already accepted ("previousCandidates").

Reply with a single JSON object and nothing else:
{
  "candidateCodings": [{"system": "...", "code": "...", "display": "..."}],
  "grade": "A" | "B" | "C",
  "rationale": "...",
  "nextQuery": {"system": "...", "query": "..."} or null
}

Rules:
- Put the best coding first. Copy code and display exactly from searchResults.
- Grade A: exact match. Grade B: acceptable but broader or narrower. Grade C: no usable result.
- When the grade is C, propose a nextQuery with different wording. Never repeat a query listed in failureHistory.
- Queries are plain words; punctuation and digits are ignored by the search engine.`

// UserMessage serializes in as the user message of an evaluation.
func UserMessage(in Input) (string, error) {
	if in.FailureHistory == nil {
		in.FailureHistory = []domain.FailureRecord{}
	}
	if in.SearchResults == nil {
		in.SearchResults = []domain.SearchResult{}
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal oracle input: %w", err)
	}
	return string(data), nil
}
