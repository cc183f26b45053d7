package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// ResolveRequest is the POST /resolve body.
type ResolveRequest struct {
	OriginalText string         `json:"originalText,omitempty"`
	Focus        string         `json:"focus"`
	System       string         `json:"system"`
	Query        string         `json:"query,omitempty"`
	Candidates   []domain.Query `json:"candidates,omitempty"`
}

// ResolveCmd creates the resolve command.
func ResolveCmd() *cobra.Command {
	var (
		system     string
		text       string
		query      string
		candidates []string
	)

	cmd := &cobra.Command{
		Use:   "resolve <concept>",
		Short: "Code a free-text concept",
		Long: `Resolves a concept to a vocabulary code by searching and letting the
server's oracle judge the results, reformulating the query until a code is
accepted or the retry budget is spent.

With --candidate the given query terms are tried in order instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := ResolveRequest{
				OriginalText: text,
				Focus:        args[0],
				System:       system,
				Query:        query,
			}
			for _, c := range candidates {
				req.Candidates = append(req.Candidates, domain.Query{System: system, QueryTerms: c})
			}

			resp, err := api.Post(cmd.Context(), "/resolve", req)
			if err != nil {
				return fmt.Errorf("resolve failed: %w", err)
			}

			var result domain.ResolutionResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse resolution: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, _ := json.MarshalIndent(result, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}
			printResolution(out, &result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "Vocabulary to code against (required)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Clinical text the concept was taken from")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Initial query terms (defaults to the concept)")
	cmd.Flags().StringArrayVarP(&candidates, "candidate", "c", nil, "Candidate query terms, tried in order (repeatable)")
	_ = cmd.MarkFlagRequired("system")

	return cmd
}

func printResolution(out io.Writer, result *domain.ResolutionResult) {
	if result.Status == domain.StatusAccepted && result.Coding != nil {
		fmt.Fprintf(out, "Accepted: %s  %s\n", result.Coding.Code, result.Coding.Display)
		fmt.Fprintf(out, "System: %s\n", result.Coding.System)
		fmt.Fprintf(out, "Grade: %s\n", result.Grade)
		if result.Rationale != "" {
			fmt.Fprintf(out, "Rationale: %s\n", result.Rationale)
		}
	} else {
		fmt.Fprintln(out, "No acceptable code found.")
	}
	fmt.Fprintf(out, "Attempts: %d\n", result.Attempts)

	if len(result.FailureHistory) > 0 {
		fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
		fmt.Fprintln(out, "Failed queries:")
		for _, f := range result.FailureHistory {
			fmt.Fprintf(out, "  %q: %s\n", f.QueryTerms, f.Rationale)
		}
	}
}

// ResolutionsCmd lists recent resolutions from the server's log.
func ResolutionsCmd() *cobra.Command {
	var (
		status string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "resolutions",
		Short: "List recent resolutions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/resolutions"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("listing resolutions failed: %w", err)
			}

			var page struct {
				Items []struct {
					ID        string                  `json:"id"`
					Focus     string                  `json:"focus"`
					System    string                  `json:"system"`
					Result    domain.ResolutionResult `json:"result"`
					CreatedAt string                  `json:"createdAt"`
				} `json:"items"`
				Cursor  string `json:"cursor,omitempty"`
				HasMore bool   `json:"has_more"`
			}
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse resolutions: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, _ := json.MarshalIndent(page, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No resolutions found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tSTATUS\tSYSTEM\tFOCUS\tCODE")
			for _, item := range page.Items {
				code := "-"
				if item.Result.Coding != nil {
					code = item.Result.Coding.Code
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.CreatedAt, item.Result.Status, item.System, item.Focus, code)
			}
			tw.Flush()
			if page.HasMore && page.Cursor != "" {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (accepted or exhausted)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of resolutions")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

// SystemsCmd lists the server's vocabularies.
func SystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List the server's vocabularies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/systems")
			if err != nil {
				return fmt.Errorf("listing systems failed: %w", err)
			}

			var systems []struct {
				Name  string `json:"name"`
				URI   string `json:"uri"`
				Index struct {
					Ready   bool `json:"ready"`
					Entries int  `json:"entries"`
				} `json:"index"`
			}
			if err := json.Unmarshal(resp.Data, &systems); err != nil {
				return fmt.Errorf("failed to parse systems: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, _ := json.MarshalIndent(systems, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tURI\tREADY\tENTRIES")
			for _, s := range systems {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", s.Name, s.URI, s.Index.Ready, s.Index.Entries)
			}
			return tw.Flush()
		},
	}
}
