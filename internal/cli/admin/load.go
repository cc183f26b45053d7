package admin

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/loader"
	"github.com/cloo-solutions/vocabtool/internal/registry"
)

// LoadCmd returns the load command
func LoadCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "load [system...]",
		Short: "Build vocabulary indexes from their sources",
		Long: `Parse each vocabulary source (CSV with a header row) and rebuild its index.
With no arguments every registered system with a source is loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != "" && len(args) != 1 {
				return fmt.Errorf("--source requires exactly one system")
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runLoad(cmd, args, source, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Override the configured source (file path or s3://bucket/key)")

	return cmd
}

func runLoad(cmd *cobra.Command, systems []string, source string, outputJSON bool) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	l, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	var targets []*registry.Vocabulary
	if len(systems) == 0 {
		for _, v := range reg.Vocabularies() {
			if v.System.Source != "" {
				targets = append(targets, v)
			}
		}
	} else {
		for _, name := range systems {
			v, err := reg.Resolve(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			targets = append(targets, v)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no system has a source configured")
	}

	out := cmd.OutOrStdout()
	var results []*loader.Result
	var failed int
	for _, v := range targets {
		var result *loader.Result
		if source != "" {
			result, err = l.LoadFrom(ctx, v, source)
		} else {
			result, err = l.Load(ctx, v)
		}
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", v.System.Name, err)
			continue
		}
		results = append(results, result)
		if !outputJSON {
			fmt.Fprintf(out, "%s: %d entries indexed from %s (%d rows skipped) in %s\n",
				result.System, result.Index.Entries, result.Source, result.Stats.Skipped, result.Duration)
		}
	}

	if outputJSON {
		data, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(data))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d vocabularies failed to load", failed, len(targets))
	}
	return nil
}
