package main

import (
	"github.com/spf13/cobra"

	"robot-coach/server/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "robotcoach",
	Short:         "Scripted cognitive-training dialogue agent",
	Long:          "robotcoach maps perceived triggers to robot responses, walks a session through its phases and evaluates finished sessions.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (built-in defaults when empty)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ROBOTCOACH_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(triggersCmd)
}

// loadConfig 按 --config、环境变量、--db 的顺序得到最终配置。
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
