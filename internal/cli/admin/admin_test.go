package admin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocabulary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var csv strings.Builder
	csv.WriteString("code,display,synonyms,frequency_rank\n")
	csv.WriteString("22298006,Myocardial infarction,heart attack,3\n")
	csv.WriteString("38341003,Hypertensive disorder,high blood pressure,2\n")
	csv.WriteString("1201005,Acute headache,sudden cephalalgia,5\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&csv, "F%03d,Reference filler item,placeholder record,0\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snomed.csv"), []byte(csv.String()), 0o644))

	registryFile := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(registryFile, []byte(`systems:
  - name: snomed
    uri: http://snomed.info/sct
    index: snomed.db
    source: snomed.csv
  - name: loinc
    uri: http://loinc.org
    index: loinc.db
`), 0o644))

	t.Setenv("VOCAB_DATA_DIR", dir)
	t.Setenv("VOCAB_REGISTRY_FILE", registryFile)
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadSystemsSearch(t *testing.T) {
	dir := writeVocabulary(t)

	out, err := execute(t, LoadCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "snomed: 63 entries indexed")
	assert.FileExists(t, filepath.Join(dir, "snomed.db"))

	out, err = execute(t, SystemsCmd())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "loinc")
	assert.Contains(t, lines[1], "false")
	assert.Contains(t, lines[2], "snomed")
	assert.Contains(t, lines[2], "true")

	out, err = execute(t, SearchCmd(), "snomed", "heart attack")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1. 22298006  Myocardial infarction"), out)

	out, err = execute(t, SearchCmd(), "snomed", "zebra")
	require.NoError(t, err)
	assert.Equal(t, "No results found.\n", out)
}

func TestLoad_Errors(t *testing.T) {
	writeVocabulary(t)

	_, err := execute(t, LoadCmd(), "loinc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 vocabularies failed to load")

	_, err = execute(t, LoadCmd(), "icd99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vocabulary system")

	_, err = execute(t, LoadCmd(), "--source", "other.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source requires exactly one system")
}

func TestLoad_SourceOverride(t *testing.T) {
	dir := writeVocabulary(t)

	override := filepath.Join(dir, "override.csv")
	var csv strings.Builder
	csv.WriteString("code,display\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&csv, "L%d,Lab test %d\n", i, i)
	}
	require.NoError(t, os.WriteFile(override, []byte(csv.String()), 0o644))

	out, err := execute(t, LoadCmd(), "loinc", "--source", override)
	require.NoError(t, err)
	assert.Contains(t, out, "loinc: 10 entries indexed")
}

func TestSearch_UnbuiltIndex(t *testing.T) {
	writeVocabulary(t)

	_, err := execute(t, SearchCmd(), "snomed", "heart attack")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}
