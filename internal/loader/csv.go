// Package loader ingests tabular vocabulary sources into search indexes.
package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/registry"
)

// ParseStats counts what Parse did with the source rows.
type ParseStats struct {
	Rows       int `json:"rows"`
	Entries    int `json:"entries"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

type columnIndex struct {
	code, display, synonyms, rank, units int
}

// Parse reads a delimited source with a header row. Columns are located by
// header name, in any order; code and display are required. Rows without a
// code or display are skipped, and repeated codes keep their first row.
func Parse(r io.Reader, cols registry.Columns, comma rune) ([]domain.VocabularyEntry, ParseStats, error) {
	var stats ParseStats

	reader := csv.NewReader(skipBOM(r))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, domain.NewDomainError(domain.ErrCodeValidation, "vocabulary source is empty")
		}
		return nil, stats, fmt.Errorf("read header: %w", err)
	}

	idx, err := resolveColumns(header, cols)
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[string]struct{})
	var entries []domain.VocabularyEntry
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		code := cell(row, idx.code)
		display := cell(row, idx.display)
		if code == "" || display == "" {
			stats.Skipped++
			continue
		}
		if _, dup := seen[code]; dup {
			stats.Duplicates++
			continue
		}
		seen[code] = struct{}{}

		entries = append(entries, domain.VocabularyEntry{
			Code:          code,
			Display:       display,
			Synonyms:      cell(row, idx.synonyms),
			FrequencyRank: parseRank(cell(row, idx.rank)),
			Units:         cell(row, idx.units),
		})
	}
	stats.Entries = len(entries)
	return entries, stats, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, []byte("\xef\xbb\xbf")) {
		br.Discard(3)
	}
	return br
}

func resolveColumns(header []string, cols registry.Columns) (columnIndex, error) {
	clean := make([]string, len(header))
	for i, h := range header {
		clean[i] = cleanCell(h)
	}

	idx := columnIndex{
		code:     findColumn(clean, cols.Code),
		display:  findColumn(clean, cols.Display),
		synonyms: findColumn(clean, cols.Synonyms),
		rank:     findColumn(clean, cols.FrequencyRank),
		units:    findColumn(clean, cols.Units),
	}
	if idx.code < 0 {
		return idx, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "required vocabulary column missing",
			fmt.Errorf("code column %q", cols.Code))
	}
	if idx.display < 0 {
		return idx, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "required vocabulary column missing",
			fmt.Errorf("display column %q", cols.Display))
	}
	return idx, nil
}

func findColumn(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, col := range header {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanCell(row[i])
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

// parseRank treats blank and unparsable ranks as unranked.
func parseRank(v string) int {
	if v == "" {
		return domain.UnrankedFrequency
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return domain.UnrankedFrequency
		}
		n = int64(f)
	}
	if n >= domain.UnrankedFrequency {
		return domain.UnrankedFrequency - 1
	}
	return domain.NormalizeFrequencyRank(int(n))
}
