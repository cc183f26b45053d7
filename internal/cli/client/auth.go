package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage server credentials",
		Long:  "Store, clear and inspect the server URL and API token used by the vocab CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var token string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the server URL and API token",
		Long:  "Store the server URL and API token in the global config (~/.config/vocab/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter API token (empty for none): ")
				input, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read API token: %w", err)
				}
				token = strings.TrimSpace(input)
			}

			if err := SaveGlobalConfig(&GlobalConfig{APIToken: token, APIURL: apiURL}); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which server and token the CLI uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagToken, _ := cmd.Flags().GetString("api-token")
			flagURL, _ := cmd.Flags().GetString("api-url")
			conn, err := ResolveConnection(flagToken, flagURL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, err := json.MarshalIndent(map[string]interface{}{
					"source":    string(conn.Source),
					"api_url":   conn.URL,
					"api_token": maskToken(conn.Token),
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal status: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Source: %s\n", conn.Source)
			fmt.Fprintf(out, "API URL: %s\n", conn.URL)
			fmt.Fprintf(out, "API Token: %s\n", maskToken(conn.Token))
			return nil
		},
	}
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) < 8:
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
