package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/config"
	"github.com/cinelex/rightsgraph/pkg/logger"
	"github.com/cinelex/rightsgraph/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the server to")
	serveCmd.Flags().Int("port", 8080, "Port to bind the server to")
	serveCmd.Flags().String("embedding-provider", "", "Embedding provider (openai, local, hashing)")
	serveCmd.Flags().String("schema-overlay", "", "Path to a relation-type overlay YAML file")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("embedding.provider", serveCmd.Flags().Lookup("embedding-provider"))
	viper.BindPFlag("schema.overlay_path", serveCmd.Flags().Lookup("schema-overlay"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	client, err := rightsgraph.New(cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	srv := server.New(cfg, client)
	srv.Setup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}
