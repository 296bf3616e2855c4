package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/git"
)

var installCmd = &cobra.Command{
	Use:   "install <bare-repo>",
	Short: "Create a bare repository whose pushes to the configured branch run the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		repodir, err := filepath.Abs(bareDir(args[0]))
		if err != nil {
			return err
		}
		binary, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}

		var extra []string
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			if abs, err := filepath.Abs(path); err == nil {
				extra = append(extra, "--config", abs)
			}
		}

		if err := git.InitBare(ctx, repodir); err != nil {
			return err
		}
		if _, err := git.InstallPostReceiveHook(ctx, repodir, binary, extra...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "push to %s to run the pipeline\n", repodir)
		return nil
	},
}

func bareDir(name string) string {
	if strings.HasSuffix(name, ".git") {
		return name
	}
	return name + ".git"
}
