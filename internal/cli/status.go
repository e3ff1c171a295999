package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/soyeahso/zeyn/internal/config"
	"github.com/soyeahso/zeyn/internal/hub"
	"github.com/soyeahso/zeyn/internal/store"
	"github.com/soyeahso/zeyn/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show zeyn status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Zeyn %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s", paths.Config)
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprint(out, " (not found, using defaults)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Data:    %s\n\n", paths.Data)

			fmt.Fprintf(out, "API:     %s (timeout %ds)\n", cfg.API.BaseURL, cfg.API.TimeoutSeconds)
			reconnect := "off"
			if cfg.Hub.ReconnectEnabled() {
				reconnect = fmt.Sprintf("every %dms", cfg.Hub.ReconnectDelayMs)
			}
			fmt.Fprintf(out, "Hub:     %s reconnect=%s\n", hub.URL(cfg.API.BaseURL, cfg.Hub.Path), reconnect)
			fmt.Fprintf(out, "Chat:    pageSize=%d\n", cfg.Chat.PageSize)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
				return nil
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				kind := cfg.Credentials.Store
				if cfg.Credentials.AccessToken != "" {
					kind = "static token"
				}
				tok, err := store.AccessToken(ctx, a.creds)
				if err != nil {
					return err
				}
				signedIn := "no"
				if tok != "" {
					signedIn = "yes"
				}
				fmt.Fprintf(out, "Login:   %s (store=%s)\n", signedIn, kind)

				if !check || tok == "" {
					return nil
				}
				me, err := a.api.Me(ctx)
				if err != nil {
					fmt.Fprintf(out, "Backend: unreachable or rejected token: %v\n", err)
					return nil
				}
				fmt.Fprintf(out, "Backend: ok, signed in as %s\n", me.Email)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify the stored token against the backend")
	return cmd
}
