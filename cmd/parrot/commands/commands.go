package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parrot/core/internal/adapters/converter"
	"github.com/parrot/core/internal/application/services"
	"github.com/parrot/core/internal/infrastructure/config"
	"github.com/parrot/core/internal/infrastructure/logger"
	"github.com/parrot/core/internal/infrastructure/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Parrot file server",
		Long:  "Start the Parrot file server with the static pipeline and registered API routes",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewConvertCommand creates the convert command: one-shot conversion of
// a single MML file to stdout, reusing the same adapter the server runs.
func NewConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file.mml>",
		Short: "Convert one MML file to HTML on stdout",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runConvert(args[0])
		},
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Parrot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Parrot v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	srv, err := server.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	appLogger.Info("Starting Parrot file server",
		"address", cfg.Server.Address(),
		"root", cfg.Static.Root,
		"listing", cfg.Static.EnableListing,
	)

	go func() {
		if err := srv.Start(cfg.Server.Address()); err != nil {
			appLogger.Info("Server stopped", "reason", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Graceful shutdown failed", "error", err)
	}
}

func runConvert(path string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	abs, err := filepath.Abs(path)
	if err != nil {
		appLogger.Fatal("Cannot resolve source path", "path", path, "error", err)
	}

	loader := converter.NewPluginLoader(cfg.Converter.PluginPath, appLogger)
	runner := converter.NewExecRunner(cfg.Converter.Command)
	converterService := services.NewConverterService(loader, runner, cfg.Converter.Timeout, appLogger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	html, err := converterService.Convert(ctx, abs)
	if err != nil {
		appLogger.Fatal("Conversion failed", "path", abs, "error", err)
	}

	fmt.Print(html)
}
