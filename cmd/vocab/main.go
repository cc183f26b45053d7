package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/cli"
	"github.com/cloo-solutions/vocabtool/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vocab",
		Short: "vocab CLI - clinical terminology lookup and coding",
		Long: `vocab queries a vocabd server: search vocabularies and code free-text
clinical concepts.

Environment variables:
  VOCAB_API_URL     API base URL (default: http://localhost:8080)
  VOCAB_API_TOKEN   Bearer token for the resolution endpoints`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.LookupCmd())
	rootCmd.AddCommand(client.ResolveCmd())
	rootCmd.AddCommand(client.ResolutionsCmd())
	rootCmd.AddCommand(client.SystemsCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
