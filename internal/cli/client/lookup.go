package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// LookupResult is one ranked match.
type LookupResult struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// LookupResponse is the bare /lookup-code body.
type LookupResponse struct {
	System  string         `json:"system"`
	Results []LookupResult `json:"results"`
	Links   struct {
		NextPageOfResults string `json:"nextPageOfResults,omitempty"`
	} `json:"links"`
}

// NextCursor extracts the cursor from the next-page link.
func (r *LookupResponse) NextCursor() string {
	link := r.Links.NextPageOfResults
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

// LookupCmd creates the lookup command.
func LookupCmd() *cobra.Command {
	var (
		limit  int
		offset int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "lookup <system> <display terms>",
		Short: "Search a vocabulary on the server",
		Long:  "Searches a vocabulary by short name (loinc, snomed, rxnorm) or canonical URI.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("system", args[0])
			q.Set("display", args[1])
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var resp LookupResponse
			if err := api.GetBare(cmd.Context(), "/lookup-code?"+q.Encode(), &resp); err != nil {
				return fmt.Errorf("lookup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "%s\n\n", resp.System)
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%d. %s  %s\n", offset+i+1, r.Code, r.Display)
			}
			if next := resp.NextCursor(); next != "" {
				fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
				fmt.Fprintf(out, "More results available. Use --cursor %s\n", next)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}
