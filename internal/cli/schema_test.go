package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "vocab", Short: "root"}
	root.PersistentFlags().String("api-url", "", "API base URL")
	AddHelpJSONFlag(root)

	resolve := &cobra.Command{Use: "resolve <concept>", Aliases: []string{"r"}, Short: "Code a concept", Run: func(*cobra.Command, []string) {}}
	resolve.Flags().StringP("system", "s", "", "Vocabulary")
	resolve.Flags().Int("limit", 5, "Limit")
	_ = resolve.MarkFlagRequired("system")

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(resolve, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "vocab", schema.Name)
	require.Len(t, schema.Subcommands, 1)

	resolve := schema.Subcommands[0]
	assert.Equal(t, "resolve", resolve.Name)
	assert.Equal(t, []string{"r"}, resolve.Aliases)

	flags := map[string]FlagSchema{}
	for _, f := range resolve.Flags {
		flags[f.Name] = f
	}
	assert.NotContains(t, flags, "help-json")
	assert.Equal(t, FlagSchema{Name: "system", Shorthand: "s", Type: "string", Description: "Vocabulary", Required: true}, flags["system"])
	assert.Equal(t, "5", flags["limit"].Default)
	assert.False(t, flags["limit"].Required)
	assert.True(t, flags["api-url"].Inherited)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "vocab", decoded.Name)
}

func TestFindTargetCommand(t *testing.T) {
	root := testTree()

	assert.Equal(t, "resolve", findTargetCommand(root, []string{"resolve"}).Name())
	assert.Equal(t, "resolve", findTargetCommand(root, []string{"r", "fever"}).Name())
	assert.Equal(t, "vocab", findTargetCommand(root, []string{"unknown"}).Name())
	assert.Equal(t, "vocab", findTargetCommand(root, nil).Name())
}
