package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/judgebench/internal/application"
	"github.com/ahrav/judgebench/internal/ports"
)

func newValidateCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run configuration without calling any model",
		Long: `Validate loads the configuration, the judge templates, the question bank
and any recorded transcripts exactly as run would, then stops before the
first model call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			env, err := application.LoadEnvironment(cmd.Context())
			if err != nil {
				return err
			}

			tester, err := newTester(cfg, env, ports.NoopMetrics{})
			if err != nil {
				return err
			}

			mode := "live"
			if tester.Replaying() {
				mode = "replay"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %d %s task(s), %s judged by %s\n",
				len(tester.Tasks()), mode, cfg.Model, cfg.JudgeModel)
			return err
		},
	}
	opts.addConfigFlags(cmd)
	return cmd
}
