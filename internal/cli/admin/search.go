package admin

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

// SearchCmd queries a local index without going through the server.
func SearchCmd() *cobra.Command {
	var (
		limit  int
		offset int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "search <system> <display terms>",
		Short: "Search a local vocabulary index",
		Args:  cobra.ExactArgs(2),
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

			svc := service.NewLookupService(reg, service.LookupConfig{
				DefaultLimit: cfg.DefaultPageSize,
				MaxLimit:     cfg.MaxPageSize,
				Cutoff:       cfg.RelevanceCutoff,
			})
			out, err := svc.Lookup(cmd.Context(), service.LookupInput{
				System:  args[0],
				Display: args[1],
				Limit:   limit,
				Offset:  offset,
				Cursor:  cursor,
			})
			if err != nil {
				return err
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			return printLookup(cmd, out, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous search")

	return cmd
}

func printLookup(cmd *cobra.Command, out *service.LookupOutput, outputJSON bool) error {
	w := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	for i, r := range out.Results {
		fmt.Fprintf(w, "%d. %s  %s\n", out.Offset+i+1, r.Code, r.Display)
	}
	if out.NextCursor != "" {
		fmt.Fprintf(w, "\nMore results available. Use --cursor %s\n", out.NextCursor)
	}
	return nil
}
