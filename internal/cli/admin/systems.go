package admin

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

// SystemsCmd returns the systems command
func SystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List registered vocabularies and their index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}
			defer reg.Close()

			outputJSON, _ := cmd.Flags().GetBool("output")
			return printSystems(cmd, service.NewLookupService(reg, service.LookupConfig{}).Systems(), outputJSON)
		},
	}
}

func printSystems(cmd *cobra.Command, systems []service.SystemStatus, outputJSON bool) error {
	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(systems, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURI\tREADY\tENTRIES\tBUILT")
	for _, s := range systems {
		built := "-"
		if s.Index.Ready {
			built = s.Index.BuiltAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", s.Name, s.URI, s.Index.Ready, s.Index.Entries, built)
	}
	return tw.Flush()
}
