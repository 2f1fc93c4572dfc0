package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roosterhub/untis-connector/config"
	"github.com/roosterhub/untis-connector/internal/bootstrap"
)

var (
	schoolName string
	logLevel   string

	rt *bootstrap.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "untisctl",
	Short: "Query WebUntis timetables",
	Long: `untisctl logs in to the WebUntis JSON-RPC API of the configured schools
and prints school years, classes and timetables. It can export timetables
to an .ics file, archive them in PostgreSQL and serve them over HTTP.

Schools are configured through the environment (UNTIS_SCHOOLS and friends).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log := bootstrap.NewLogger(cfg, logLevel)
		rt, err = bootstrap.New(cmd.Context(), cfg, log)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&schoolName, "school", "s", "", "School or institute name, defaults to UNTIS_DEFAULT_SCHOOL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")
}
