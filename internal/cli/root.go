package cli

import (
	"github.com/soyeahso/zeyn/internal/config"
	"github.com/soyeahso/zeyn/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	apiBase  string

	// loaded in PersistentPreRunE
	paths config.Paths
	cfg   config.Config
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zeyn",
		Short: "Zeyn: caregiving platform client",
		Long:  "zeyn talks to the Zeyn caregiving platform: sign in, manage children and chat with the Zeyn assistant.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			cfg, err = config.Load(paths.Config)
			if err != nil {
				return err
			}
			if apiBase != "" {
				cfg.API.BaseURL = apiBase
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
				cfg.Hub.LogLevel = logLevel
			}
			log = logging.NewStyled(nil, cfg.Logging.Level, cfg.Logging.ConsoleStyle)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.zeyn/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&apiBase, "api-base", "", "backend base URL (overrides api.baseUrl)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newChildrenCmd())
	cmd.AddCommand(newConversationsCmd())
	cmd.AddCommand(newMessagesCmd())
	cmd.AddCommand(newChatCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
