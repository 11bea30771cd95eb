package cmd

import (
	"os"

	"github.com/josephlewis42/pgsh/commands"
	"github.com/josephlewis42/pgsh/core/config"
	"github.com/josephlewis42/pgsh/core/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	command  string
	debug    bool
	exitCode int
)

func loadConfig() (*config.Configuration, error) {
	return config.Load(afero.NewOsFs(), cfgPath)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pgsh [file]",
	Short: "A job control shell",
	Long: `pgsh runs pipelines as process groups, hands the terminal to the
foreground job, and lets stopped or background jobs be resumed with fg and bg.

With no arguments it reads commands from standard input, interactively when
that is a terminal. With a file it runs each line of the file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logs := logger.Discard()
		if debug {
			logs = logger.New(cmd.ErrOrStderr())
		}

		script := ""
		if len(args) == 1 {
			script = args[0]
		}

		exitCode = commands.RunShell(commands.Options{
			Config: cfg,
			Logger: logs,
		}, command, script)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log job control events to stderr")
}
