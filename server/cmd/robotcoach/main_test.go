package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"robot-coach/server/internal/config"
	"robot-coach/server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestTriggersCommand(t *testing.T) {
	out := runCLI(t, "triggers")
	assert.Contains(t, out, "positive:")
	assert.Contains(t, out, "User smiles/laughs")
	assert.Contains(t, out, "Critical")
}

func TestEvaluateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "coach.db")

	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = dbPath
	a, err := buildApp(cfg)
	require.NoError(t, err)

	orch := a.orchestrator(cfg)
	ctx := context.Background()
	created, err := orch.CreateSession(ctx)
	require.NoError(t, err)
	for _, tr := range []string{"greet", "User smiles/laughs", "end of user speech"} {
		_, err := orch.HandleTrigger(ctx, created.SessionID, tr)
		require.NoError(t, err)
	}
	require.NoError(t, a.Close())

	out := runCLI(t, "evaluate", "--db", dbPath, "--session", created.SessionID)
	var report model.EvaluationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 3, report.SessionStats.TotalSteps)
	assert.True(t, report.FSMMetrics.ReachedFinalState)
	require.NotNil(t, report.ScenarioClassification)
}
