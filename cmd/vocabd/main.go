package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/cli"
	"github.com/cloo-solutions/vocabtool/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vocabd",
		Short: "Vocabulary server and index tools",
		Long: `vocabd runs the terminology lookup and resolution API and manages the
vocabulary indexes it serves.

Configuration is read from VOCAB_* environment variables (and .env).`,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.LoadCmd())
	rootCmd.AddCommand(admin.SystemsCmd())
	rootCmd.AddCommand(admin.SearchCmd())
	rootCmd.AddCommand(admin.UploadCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
