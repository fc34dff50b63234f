package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria <text>",
	Short: "Show which company fields a criteria text depends on",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initQualifier(cfg, "criteria")
		if err != nil {
			return err
		}

		info, err := env.Orchestrator.Interpret(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	},
}

func init() {
	rootCmd.AddCommand(criteriaCmd)
}
