package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"robot-coach/server/internal/rules"
)

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List the trigger catalog grouped by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog := rules.Default()
		if cfg.Paths.Rules != "" {
			if catalog, err = rules.LoadFile(cfg.Paths.Rules); err != nil {
				return err
			}
		}

		groups := catalog.Groups()
		w := cmd.OutOrStdout()
		for _, g := range rules.Groups {
			if len(groups[g]) == 0 {
				continue
			}
			fmt.Fprintf(w, "%s:\n", g)
			for _, tr := range groups[g] {
				rule, _ := catalog.Select(tr)
				fmt.Fprintf(w, "  %-40s %-8s %s\n", tr, rule.Priority, rule.InferredIntent)
			}
		}
		return nil
	},
}
