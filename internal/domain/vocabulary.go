package domain

import "math"

// UnrankedFrequency is the effective frequency rank of entries the source marks
// as unranked (raw rank 0 or blank). It sorts after every real rank.
const UnrankedFrequency = math.MaxInt32

// VocabularyEntry is one loaded terminology row. Immutable once loaded.
type VocabularyEntry struct {
	Code          string
	Display       string
	Synonyms      string
	FrequencyRank int
	Units         string
}

// NormalizeFrequencyRank maps a raw source rank to its effective rank.
// Zero and negative ranks are placeholders for "unranked", not "most common".
func NormalizeFrequencyRank(raw int) int {
	if raw <= 0 {
		return UnrankedFrequency
	}
	if raw >= UnrankedFrequency {
		return UnrankedFrequency - 1
	}
	return raw
}

// SearchResult is the projection of an entry returned to lookup callers.
type SearchResult struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Coding identifies one concept in one vocabulary.
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Query is a (system, query terms) pair sent to the lookup service.
type Query struct {
	System     string `json:"system"`
	QueryTerms string `json:"query"`
}
