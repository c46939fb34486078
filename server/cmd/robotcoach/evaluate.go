package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Print the evaluation report of a stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd)
	},
}

func init() {
	evaluateCmd.Flags().String("session", "", "Session ID to evaluate")
	_ = evaluateCmd.MarkFlagRequired("session")
	evaluateCmd.Flags().Bool("details", false, "Print interactions and trigger counters as well")
}

func runEvaluate(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "sqlite" {
		return fmt.Errorf("evaluate needs a SQLite database: pass --db or set ROBOTCOACH_DB")
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id, _ := cmd.Flags().GetString("session")
	details, _ := cmd.Flags().GetBool("details")
	orch := a.orchestrator(cfg)

	var out any
	if details {
		out, err = orch.Details(cmd.Context(), id)
	} else {
		out, err = orch.Evaluate(cmd.Context(), id)
	}
	if err != nil {
		return fmt.Errorf("evaluate session %s: %w", id, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
