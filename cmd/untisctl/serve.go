package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roosterhub/untis-connector/internal/infrastructure/service"
	httpapi "github.com/roosterhub/untis-connector/internal/interface/http"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timetable API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := rt.Config

		// the archive database is served and health-checked when configured
		var archive httpapi.ArchiveService
		if cfg.Database.URL != "" {
			store, err := rt.Archive(ctx)
			if err != nil {
				return err
			}
			archive = service.NewArchive(store, rt.Sessions)
		}

		serverCfg := httpapi.DefaultConfig()
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		} else if cfg.HTTP.Addr != "" {
			serverCfg.Addr = cfg.HTTP.Addr
		}
		if cfg.HTTP.ReadTimeout > 0 {
			serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		}
		if cfg.HTTP.WriteTimeout > 0 {
			serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		}
		if cfg.App.Location != nil {
			serverCfg.Location = cfg.App.Location
		}
		if cfg.App.Version != "" {
			serverCfg.Version = cfg.App.Version
		}

		server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
			Service: rt.Sessions,
			Archive: archive,
			Health:  rt.Health(),
			Logger:  rt.Log,
		})

		errCh := server.StartAsync()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		rt.Log.Info("shutdown signal received", logger.Duration("timeout", cfg.App.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address, defaults to HTTP_ADDR or :8080")
}
