package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packfs/asar/pkg/archive"
	"github.com/packfs/asar/pkg/commands"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "asar",
	Short: "Pack, list, and extract asar archives",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return archive.SetLogLevel(logLevel)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error, disabled")
	rootCmd.AddCommand(commands.PackCmd)
	rootCmd.AddCommand(commands.ExtractCmd)
	rootCmd.AddCommand(commands.ListCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Msgf("%v", err)
		os.Exit(1)
	}
}
