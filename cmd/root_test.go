package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/trace"
)

func newTestRunCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	registerRunFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildConfig_NoFlags_Defaults(t *testing.T) {
	c := newTestRunCmd(t)

	cfg, err := buildConfig(c)

	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
}

func TestBuildConfig_FileValues_KeptWhenFlagsUnset(t *testing.T) {
	// GIVEN a config file setting the seed and ticks
	path := writeFile(t, "seed: 7\ntick_count: 12\nselection_probability: 0.9\n")

	// WHEN only --config is given
	c := newTestRunCmd(t, "--config", path)
	cfg, err := buildConfig(c)

	// THEN file values win over defaults
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Run.Seed)
	assert.Equal(t, int64(12), cfg.Run.TickCount)
	assert.Equal(t, 0.9, cfg.Run.SelectionProbability)
	assert.Equal(t, sim.DefaultConfig().Inflation, cfg.Inflation)
}

func TestBuildConfig_ChangedFlags_OverrideFile(t *testing.T) {
	// GIVEN a config file with seed 7
	path := writeFile(t, "seed: 7\ntick_count: 12\n")

	// WHEN --seed and --partial-fill are set explicitly
	c := newTestRunCmd(t, "--config", path, "--seed", "100", "--partial-fill=false")
	cfg, err := buildConfig(c)

	// THEN the explicit flags override, the rest comes from the file
	require.NoError(t, err)
	assert.Equal(t, int64(100), cfg.Run.Seed)
	assert.False(t, cfg.Run.PartialFill)
	assert.Equal(t, int64(12), cfg.Run.TickCount)
}

func TestBuildConfig_UnknownKey_Error(t *testing.T) {
	path := writeFile(t, "seeed: 7\n")
	c := newTestRunCmd(t, "--config", path)

	_, err := buildConfig(c)

	assert.Error(t, err)
}

func TestBuildConfig_MissingFile_Error(t *testing.T) {
	c := newTestRunCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := buildConfig(c)

	assert.Error(t, err)
}

func TestWriteDefaults_RoundTripsThroughLoadConfig(t *testing.T) {
	// GIVEN the printed defaults
	var buf bytes.Buffer
	require.NoError(t, writeDefaults(&buf))

	// WHEN they are loaded back as a config file
	cfg, err := sim.LoadConfig(writeFile(t, buf.String()))

	// THEN nothing is lost and every documented option name is present
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
	for _, key := range []string{"seed:", "event_interval:", "inflation_penalty_ratio:", "supplier_restock_interval:", "products_per_supplier_max:"} {
		assert.Contains(t, buf.String(), key)
	}
}

func TestPrintSummary_ContainsTotals(t *testing.T) {
	// GIVEN a finished summary and a trace summary with orders
	s := sim.RunSummary{
		State:        sim.StateStopped,
		Tick:         1200,
		Transactions: 10,
		Successes:    8,
		SuccessRate:  0.8,
		Volume:       12345.5,
		Failures:     map[sim.FailureReason]int{sim.ReasonInsufficientBudget: 2},
		Events:       map[sim.EventKind]int{sim.EventInflation: 3},
	}
	ts := &trace.TraceSummary{OrderTotals: trace.NewDistribution([]float64{10, 20})}

	// WHEN printed
	var buf bytes.Buffer
	printSummary(&buf, s, ts)
	out := buf.String()

	// THEN the key figures appear in human-readable form
	assert.Contains(t, out, "Simulation Summary")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "$12,345.50")
	assert.Contains(t, out, string(sim.ReasonInsufficientBudget))
	assert.Contains(t, out, "Order total p50")
	assert.True(t, strings.Contains(out, string(sim.EventInflation)))
}

func TestPrintSummary_NilTrace_SkipsOrders(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, sim.RunSummary{State: sim.StateStopped}, nil)
	assert.NotContains(t, buf.String(), "Orders")
}
