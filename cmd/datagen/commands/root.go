// Package commands implements the datagen CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the datagen command tree.
func NewRootCmd() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:   "datagen",
		Short: "Generate labelled jailbreak datasets for classifier training",
		Long: `datagen drives a datagen server and writes the streamed dataset to disk.

Examples:
  datagen generate --count 20 --category roleplay_injection --out data.jsonl --format jsonl
  datagen generate --transport ws --difficulty expert --sort severity --desc
  datagen categories`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(verbosity)
			// Progress and status go to stderr so stdout can carry the dataset.
			pterm.SetDefaultOutput(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newCategoriesCmd())
	return root
}

func setupLogging(verbosity int) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
