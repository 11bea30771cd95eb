package cmd

import (
	"fmt"
	"log"

	"github.com/josephlewis42/pgsh/core/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create pgsh's configuration file if it does not exist.",
	Long: `Create pgsh's configuration file if it does not exist.

The file is written to the --config path, by default config.yaml in the pgsh
directory under the user's configuration directory. An existing file is
validated and left alone. The history and run-command files it names are
printed once the configuration loads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := config.Initialize(afero.NewOsFs(), cfgPath, log.New(cmd.ErrOrStderr(), "", 0))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "history file: %s\n", config.ExpandPath(cfg.HistoryFile))
		fmt.Fprintf(out, "rc file:      %s\n", config.ExpandPath(cfg.RCFile))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
