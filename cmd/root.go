package cmd

import (
	"context"
	"os"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/cmd/hook"
	"github.com/yz4230/rolling/internal/app"
	"github.com/yz4230/rolling/internal/config"
)

var rootFlags struct {
	verbose bool
	config  string
}

var rootCmd = &cobra.Command{
	Use:   "rolling",
	Short: "Build a GitHub repository into a container image and roll it out to EKS",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if rootFlags.verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	SilenceUsage: true,
}

// newInjector loads the configuration named by --config and assembles the
// services the subcommands resolve.
func newInjector() (*config.Config, *do.Injector, error) {
	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.New(cfg, log.Logger), nil
}

// logContext attaches the global logger to ctx for zerolog.Ctx lookups.
func logContext(ctx context.Context) context.Context {
	return log.Logger.WithContext(ctx)
}

func Execute() {
	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Aliases:       cc.Bold + cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "rolling.yaml", "Configuration file, ignored when missing")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(hook.HookCmd)
}
