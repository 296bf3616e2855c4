package hook

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/app"
	"github.com/yz4230/rolling/internal/config"
)

// HookCmd represents the hook command
var HookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Trigger the pipeline from pushes to a local bare repository",
}

// loadConfig reads the file named by the inherited --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newInjector(cfg *config.Config) *do.Injector {
	return app.New(cfg, log.Logger)
}

func init() {
	HookCmd.AddCommand(installCmd)
	HookCmd.AddCommand(postReceiveCmd)
}
