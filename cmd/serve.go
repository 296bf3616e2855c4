package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/demo"
)

var serveFlags struct {
	port  int
	color string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo service that the pipeline deploys",
	RunE: func(cmd *cobra.Command, args []string) error {
		color := demoColor(serveFlags.color, cmd.Flags().Changed("color"))
		srv, err := demo.New(&demo.Config{Port: serveFlags.port, Color: color, Logger: log.Logger})
		if err != nil {
			return err
		}
		serveUntilSignal(srv, log.Logger)
		return nil
	},
}

// demoColor prefers an explicit --color, then COLOR, then the flag default.
func demoColor(flag string, explicit bool) string {
	if !explicit {
		if env, ok := os.LookupEnv("COLOR"); ok && env != "" {
			return env
		}
	}
	return flag
}

func init() {
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", demo.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveFlags.color, "color", demo.DefaultColor, "Page background color, COLOR in the environment")
}
