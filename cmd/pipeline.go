package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/server"
	"github.com/yz4230/rolling/internal/usecase"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run and inspect the source, build and deploy pipeline",
}

var pipelineRunFlags struct {
	ref string
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once against the configured branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, injector, err := newInjector()
		if err != nil {
			return err
		}
		runPipeline, err := do.Invoke[usecase.RunPipelineUsecase](injector)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(logContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
		defer stop()

		run, err := runPipeline.Execute(ctx, entity.Trigger{Source: "cli", Ref: pipelineRunFlags.ref})
		if run != nil {
			log.Info().
				Str("run", run.UID).
				Str("status", string(run.Status)).
				Str("image", run.ImageURI).
				Msg("pipeline finished")
		}
		return err
	},
}

var pipelineServeFlags struct {
	port int
}

var pipelineServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API for triggering and inspecting runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, injector, err := newInjector()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		srv := server.New(&server.Config{Port: pipelineServeFlags.port, Logger: log.Logger, Injector: injector})
		serveUntilSignal(srv, log.Logger)
		return nil
	},
}

var pipelineHistoryFlags struct {
	limit int
	json  bool
}

var pipelineHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, injector, err := newInjector()
		if err != nil {
			return err
		}
		listRuns, err := do.Invoke[usecase.ListRunsUsecase](injector)
		if err != nil {
			return err
		}
		runs, err := listRuns.Execute(logContext(cmd.Context()), pipelineHistoryFlags.limit)
		if err != nil {
			return err
		}
		if pipelineHistoryFlags.json {
			return writeJSON(cmd, runs)
		}

		return writeRuns(cmd.OutOrStdout(), runs)
	},
}

// writeRuns prints runs as an aligned table.
func writeRuns(out io.Writer, runs []*entity.Run) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tCOMMIT\tTAG\tSTARTED\tFAILED STAGE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.Trigger, shortSHA(r.CommitSHA), r.ImageTag,
			r.StartedAt.Local().Format(time.DateTime), failedStage(r))
	}
	return w.Flush()
}

var pipelineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the last successful run with what the cluster is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, injector, err := newInjector()
		if err != nil {
			return err
		}
		status, err := do.Invoke[usecase.PipelineStatusUsecase](injector)
		if err != nil {
			return err
		}
		s, err := status.Execute(logContext(cmd.Context()))
		if err != nil {
			return err
		}
		return writeJSON(cmd, s)
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func failedStage(r *entity.Run) string {
	for _, s := range r.Stages {
		if s.Status == entity.RunStatusFailed {
			return s.Name
		}
	}
	return "-"
}

func init() {
	pipelineRunCmd.Flags().StringVar(&pipelineRunFlags.ref, "ref", "", "Commit to build instead of the branch head")
	pipelineServeCmd.Flags().IntVarP(&pipelineServeFlags.port, "port", "p", 8080, "Port to listen on")
	pipelineHistoryCmd.Flags().IntVarP(&pipelineHistoryFlags.limit, "limit", "n", 20, "Number of runs to show")
	pipelineHistoryCmd.Flags().BoolVar(&pipelineHistoryFlags.json, "json", false, "Print runs as JSON")

	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineServeCmd)
	pipelineCmd.AddCommand(pipelineHistoryCmd)
	pipelineCmd.AddCommand(pipelineStatusCmd)
}
