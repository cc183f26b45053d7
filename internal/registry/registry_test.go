package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

func TestLoadSystems_Defaults(t *testing.T) {
	systems, err := LoadSystems("", "/data")
	require.NoError(t, err)
	require.Len(t, systems, 3)

	assert.Equal(t, "loinc", systems[0].Name)
	assert.Equal(t, LOINCURI, systems[0].URI)
	assert.Equal(t, "/data/loinc.db", systems[0].IndexPath)
	assert.Equal(t, LOINCColumns, systems[0].Columns)
}

func TestLoadSystems_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	content := `
systems:
  - name: ICD10
    uri: http://hl7.org/fhir/sid/icd-10
    source: s3://vocab/icd10.csv
    columns:
      code: CODE
      display: TITLE
  - name: local
    uri: urn:local
    index: /abs/local.db
    source: local.csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	systems, err := LoadSystems(path, "/data")
	require.NoError(t, err)
	require.Len(t, systems, 2)

	assert.Equal(t, "icd10", systems[0].Name)
	assert.Equal(t, "/data/icd10.db", systems[0].IndexPath)
	assert.Equal(t, "s3://vocab/icd10.csv", systems[0].Source)
	assert.Equal(t, "CODE", systems[0].Columns.Code)
	assert.Equal(t, "TITLE", systems[0].Columns.Display)
	assert.Equal(t, DefaultColumns.Synonyms, systems[0].Columns.Synonyms)
	assert.Equal(t, DefaultColumns.FrequencyRank, systems[0].Columns.FrequencyRank)

	assert.Equal(t, "/abs/local.db", systems[1].IndexPath)
	assert.Equal(t, "/data/local.csv", systems[1].Source)
	assert.Equal(t, DefaultColumns, systems[1].Columns)
}

func TestLoadSystems_OmittedColumnsUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := "systems:\n  - name: snomed\n    uri: " + SNOMEDURI + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	systems, err := LoadSystems(path, "/data")
	require.NoError(t, err)
	require.Len(t, systems, 1)
	assert.Equal(t, DefaultColumns, systems[0].Columns)
}

func TestLoadSystems_Errors(t *testing.T) {
	_, err := LoadSystems(filepath.Join(t.TempDir(), "missing.yaml"), "/data")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("systems: []\n"), 0o644))
	_, err = LoadSystems(path, "/data")
	assert.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := New(Defaults(t.TempDir()))
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"short name", "loinc", "loinc"},
		{"case insensitive", "SNOMED", "snomed"},
		{"canonical uri", RxNormURI, "rxnorm"},
		{"padded", "  loinc ", "loinc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Resolve(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.System.Name)
		})
	}

	_, err = r.Resolve("icd10")
	assert.ErrorIs(t, err, domain.ErrUnknownSystem)

	_, err = r.Resolve("")
	assert.ErrorIs(t, err, domain.ErrMissingSystem)
}

func TestRegistry_UnbuiltIndexesAreRegistered(t *testing.T) {
	r, err := New(Defaults(t.TempDir()))
	require.NoError(t, err)
	defer r.Close()

	vocabs := r.Vocabularies()
	require.Len(t, vocabs, 3)
	assert.Equal(t, []string{"loinc", "rxnorm", "snomed"},
		[]string{vocabs[0].System.Name, vocabs[1].System.Name, vocabs[2].System.Name})
	for _, v := range vocabs {
		assert.False(t, v.Index.Ready())
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	systems := []System{
		{Name: "a", URI: "urn:a", IndexPath: filepath.Join(dir, "a.db")},
		{Name: "A", URI: "urn:b", IndexPath: filepath.Join(dir, "b.db")},
	}
	_, err := New(systems)
	assert.Error(t, err)

	_, err = New([]System{{Name: "x", IndexPath: filepath.Join(dir, "x.db")}})
	assert.Error(t, err)
}
