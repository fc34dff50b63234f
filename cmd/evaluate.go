package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var evaluateCriteria string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <org-number>",
	Short: "Evaluate one company against criteria",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initQualifier(cfg, "evaluate")
		if err != nil {
			return err
		}

		res, err := env.Orchestrator.EvaluateSingle(ctx, args[0], evaluateCriteria)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateCriteria, "criteria", "", "free-text match criteria")
	_ = evaluateCmd.MarkFlagRequired("criteria")
	rootCmd.AddCommand(evaluateCmd)
}
