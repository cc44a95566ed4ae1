package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judgebench",
		Short: "Benchmark chat models with an LLM judge",
		Long: `judgebench holds a multi-turn conversation with a subject model, or
replays recorded transcripts, and asks a judge model to rate every answer.

Results are written as a JSON or YAML report with a summary table on stderr.`,
		Version:      version,
		SilenceUsage: true,
	}

	debug := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if *debug {
			level = slog.LevelDebug
		}
		cmd.SetContext(withLogger(cmd.Context(), cmd.ErrOrStderr(), level))
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

// withLogger installs a text logger writing to w in ctx.
func withLogger(ctx context.Context, w io.Writer, level slog.Level) context.Context {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return clog.WithLogger(ctx, clog.New(handler))
}

func execute(ctx context.Context, args []string) error {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	return rootCmd.ExecuteContext(ctx)
}
