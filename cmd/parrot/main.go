package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/parrot/core/cmd/parrot/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "parrot",
		Short: "Parrot static file server",
		Long:  `Parrot serves a directory tree over HTTP, converting MML markup sources to HTML on the fly through an externally supplied converter.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewConvertCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
