package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargesim/core/model"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	// flag values outlive a single Execute call
	estimateCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "storage:\n  type: jsonl\n  conf:\n    path: " + filepath.Join(dir, "sims.jsonl") + "\nlogging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestEstimate_Table(t *testing.T) {
	cfg := writeConfig(t)
	out, _, err := execute(t, "-c", cfg, "estimate")
	require.NoError(t, err)
	assert.Regexp(t, `Theoretical max power +220\.00 kW`, out)
	assert.Regexp(t, `Actual max power +176\.00 kW`, out)
	assert.Regexp(t, `Concurrency factor +80\.00 %`, out)
	assert.Regexp(t, `Peak hour +18:00`, out)
	assert.Contains(t, out, "18:00  176.00")
}

func TestEstimate_JSON(t *testing.T) {
	cfg := writeConfig(t)
	out, _, err := execute(t, "-c", cfg, "estimate", "--format", "json", "--charge-points", "5")
	require.NoError(t, err)
	var res model.SimulationOutputs
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 55.0, res.TheoreticalMaxPower)
	assert.Equal(t, 44.0, res.ActualMaxPower)
	assert.Len(t, res.HourlyData, 24)
}

func TestEstimate_CSV(t *testing.T) {
	cfg := writeConfig(t)
	out, _, err := execute(t, "-c", cfg, "estimate", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "actual_max_power_kw,176\n")
	assert.Contains(t, out, "hour,power_demand_kw,active_charge_points\n")
	assert.Contains(t, out, "18,176,16\n")
}

func TestEstimate_Rejected(t *testing.T) {
	cfg := writeConfig(t)
	_, _, err := execute(t, "-c", cfg, "estimate", "--arrival", "500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arrivalMultiplier")

	_, _, err = execute(t, "-c", cfg, "estimate", "--format", "xml")
	require.Error(t, err)
}

func TestSimulationsLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "-c", cfg, "estimate", "--save", "--format", "json", "--power", "22")
	require.NoError(t, err)
	var sim model.Simulation
	require.NoError(t, json.Unmarshal([]byte(out), &sim))
	require.NotEmpty(t, sim.ID)
	assert.False(t, sim.CreatedAt.IsZero())
	assert.Equal(t, 22.0, sim.Inputs.ChargingPower)

	out, _, err = execute(t, "-c", cfg, "simulations", "ls")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], sim.ID))

	out, _, err = execute(t, "-c", cfg, "simulations", "get", sim.ID)
	require.NoError(t, err)
	var got model.Simulation
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, sim.ID, got.ID)
	assert.Equal(t, 352.0, got.Outputs.ActualMaxPower)

	out, _, err = execute(t, "-c", cfg, "sims", "rm", sim.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+sim.ID+"\n", out)

	_, _, err = execute(t, "-c", cfg, "simulations", "get", sim.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
