package hook

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/usecase"
)

var postReceiveCmd = &cobra.Command{
	Use:           "post-receive",
	Short:         "Handle post-receive git hook. Not intended to be run manually.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Error().Err(err).Msg("load config")
			return err
		}

		update, ok, err := findUpdate(os.Stdin, "refs/heads/"+cfg.Source.Branch)
		if err != nil {
			log.Error().Err(err).Msg("read stdin")
			return err
		}
		if !ok {
			log.Info().Str("branch", cfg.Source.Branch).Msg("branch not updated, no deployment needed")
			return nil
		}
		if update.deleted() {
			log.Warn().Str("ref", update.ref).Msg("branch deleted, nothing to deploy")
			return nil
		}

		gitDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		cfg.Source.GitURL = gitDir

		log.Info().Str("old_sha", update.old).Str("new_sha", update.new).Str("ref", update.ref).Msg("starting deployment...")

		runPipeline, err := do.Invoke[usecase.RunPipelineUsecase](newInjector(cfg))
		if err != nil {
			log.Error().Err(err).Msg("assemble pipeline")
			return err
		}
		run, err := runPipeline.Execute(ctx, entity.Trigger{Source: "hook", Ref: update.new})
		if err != nil {
			log.Error().Err(err).Msg("pipeline failed")
			return err
		}
		log.Info().Str("run", run.UID).Str("image", run.ImageURI).Msg("deployment finished")
		return nil
	},
}

type refUpdate struct {
	old, new, ref string
}

func (u refUpdate) deleted() bool {
	return strings.Trim(u.new, "0") == ""
}

// findUpdate scans post-receive input, one "<old> <new> <ref>" per line, for
// an update of ref.
func findUpdate(r io.Reader, ref string) (refUpdate, bool, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		parts := strings.Fields(line)
		if len(parts) != 3 {
			log.Error().Str("line", line).Msg("invalid input line")
			continue
		}
		if parts[2] == ref {
			return refUpdate{old: parts[0], new: parts[1], ref: parts[2]}, true, nil
		}
	}
	return refUpdate{}, false, s.Err()
}
