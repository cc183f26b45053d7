package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/pagination"
	"github.com/cloo-solutions/vocabtool/internal/registry"
)

func lookupEntries() []domain.VocabularyEntry {
	entries := []domain.VocabularyEntry{
		{Code: "22298006", Display: "Myocardial infarction", Synonyms: "heart attack", FrequencyRank: 3},
		{Code: "274663001", Display: "Acute pain", Synonyms: "sudden discomfort", FrequencyRank: 20},
		{Code: "1201005", Display: "Acute headache", Synonyms: "sudden cephalalgia", FrequencyRank: 5},
		{Code: "49727002", Display: "Acute cough", Synonyms: "sudden tussis", FrequencyRank: 6},
		{Code: "38341003", Display: "Hypertensive disorder", Synonyms: "high blood pressure", FrequencyRank: 2},
	}
	for i := 0; i < 60; i++ {
		entries = append(entries, domain.VocabularyEntry{
			Code:          fmt.Sprintf("F%03d", i),
			Display:       "Reference filler item",
			Synonyms:      "placeholder record",
			FrequencyRank: domain.UnrankedFrequency,
		})
	}
	return entries
}

// newTestLookup registers a built snomed index and an unbuilt loinc index.
func newTestLookup(t *testing.T, cfg LookupConfig) (*LookupService, *registry.Registry) {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.New([]registry.System{
		{Name: "snomed", URI: registry.SNOMEDURI, IndexPath: filepath.Join(dir, "snomed.db")},
		{Name: "loinc", URI: registry.LOINCURI, IndexPath: filepath.Join(dir, "loinc.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	v, err := reg.Resolve("snomed")
	require.NoError(t, err)
	_, err = v.Index.Build(context.Background(), lookupEntries())
	require.NoError(t, err)

	return NewLookupService(reg, cfg), reg
}

func TestLookup_BySystemNameAndURI(t *testing.T) {
	svc, _ := newTestLookup(t, DefaultLookupConfig())

	for _, system := range []string{"snomed", "SNOMED", registry.SNOMEDURI} {
		out, err := svc.Lookup(context.Background(), LookupInput{System: system, Display: "heart attack"})
		require.NoError(t, err, system)
		assert.Equal(t, registry.SNOMEDURI, out.System)
		require.NotEmpty(t, out.Results)
		assert.Equal(t, "22298006", out.Results[0].Code)
		assert.Equal(t, DefaultPageSize, out.Limit)
		assert.Empty(t, out.NextCursor)
	}
}

func TestLookup_Errors(t *testing.T) {
	svc, _ := newTestLookup(t, DefaultLookupConfig())

	tests := []struct {
		name     string
		input    LookupInput
		wantErr  error
		wantCode string
	}{
		{"unknown system", LookupInput{System: "icd99", Display: "fever"}, domain.ErrUnknownSystem, domain.ErrCodeNotFound},
		{"missing system", LookupInput{Display: "fever"}, domain.ErrMissingSystem, domain.ErrCodeValidation},
		{"empty query", LookupInput{System: "snomed", Display: "  123 -- ?"}, domain.ErrEmptyQuery, domain.ErrCodeValidation},
		{"negative limit", LookupInput{System: "snomed", Display: "pain", Limit: -1}, domain.ErrInvalidPagination, domain.ErrCodeValidation},
		{"negative offset", LookupInput{System: "snomed", Display: "pain", Offset: -3}, domain.ErrInvalidPagination, domain.ErrCodeValidation},
		{"garbage cursor", LookupInput{System: "snomed", Display: "pain", Cursor: "%%%"}, domain.ErrInvalidCursor, domain.ErrCodeValidation},
		{"unbuilt index", LookupInput{System: "loinc", Display: "sodium"}, domain.ErrIndexUnavailable, domain.ErrCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.Lookup(context.Background(), tt.input)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, domain.CodeOf(err))
		})
	}
}

func TestLookup_NoMatchIsEmpty(t *testing.T) {
	svc, _ := newTestLookup(t, DefaultLookupConfig())

	out, err := svc.Lookup(context.Background(), LookupInput{System: "snomed", Display: "zebra"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.False(t, out.HasNextPage())
}

func TestLookup_LimitBounds(t *testing.T) {
	svc, _ := newTestLookup(t, LookupConfig{DefaultLimit: 2, MaxLimit: 3})

	out, err := svc.Lookup(context.Background(), LookupInput{System: "snomed", Display: "acute"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Limit)
	assert.Len(t, out.Results, 2)
	assert.True(t, out.HasNextPage())

	out, err = svc.Lookup(context.Background(), LookupInput{System: "snomed", Display: "acute", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Limit)
	assert.Len(t, out.Results, 3)

	out, err = svc.Lookup(context.Background(), LookupInput{System: "snomed", Display: "acute", Limit: 50})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrLimitTooLarge)
	assert.True(t, domain.IsInvalidRequest(err))
}

func TestLookup_CursorPaging(t *testing.T) {
	svc, _ := newTestLookup(t, DefaultLookupConfig())
	ctx := context.Background()

	all, err := svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 10})
	require.NoError(t, err)
	require.Len(t, all.Results, 3)

	var paged []domain.SearchResult
	input := LookupInput{System: "snomed", Display: "acute", Limit: 1}
	for i := 0; i < 5; i++ {
		out, err := svc.Lookup(ctx, input)
		require.NoError(t, err)
		paged = append(paged, out.Results...)
		if out.NextCursor == "" {
			break
		}
		input.Cursor = out.NextCursor
	}
	assert.Equal(t, all.Results, paged)

	byOffset, err := svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, all.Results[1:2], byOffset.Results)
}

func TestLookup_StaleCursorAfterRebuild(t *testing.T) {
	svc, reg := newTestLookup(t, DefaultLookupConfig())
	ctx := context.Background()

	out, err := svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, out.NextCursor)

	v, err := reg.Resolve("snomed")
	require.NoError(t, err)
	_, err = v.Index.Build(ctx, lookupEntries())
	require.NoError(t, err)

	_, err = svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 1, Cursor: out.NextCursor})
	assert.ErrorIs(t, err, domain.ErrStaleCursor)

	fresh, err := svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 1})
	require.NoError(t, err)
	cursor, err := pagination.DecodeOffset(fresh.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, v.Index.Generation(), cursor.Generation)

	next, err := svc.Lookup(ctx, LookupInput{System: "snomed", Display: "acute", Limit: 1, Cursor: fresh.NextCursor})
	require.NoError(t, err)
	assert.Len(t, next.Results, 1)
}

func TestSystems(t *testing.T) {
	svc, _ := newTestLookup(t, DefaultLookupConfig())

	systems := svc.Systems()
	require.Len(t, systems, 2)
	assert.Equal(t, "loinc", systems[0].Name)
	assert.False(t, systems[0].Index.Ready)
	assert.Equal(t, "snomed", systems[1].Name)
	assert.True(t, systems[1].Index.Ready)
	assert.Equal(t, len(lookupEntries()), systems[1].Index.Entries)
}
