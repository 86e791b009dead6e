package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/period"
	"github.com/jask/recordboard/internal/service"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECORDBOARD_CONFIG", filepath.Join(dir, "config.toml"))
	t.Setenv("RECORDBOARD_DATABASE_PATH", filepath.Join(dir, "data", "records.db"))

	out, err := runCLI(t, "seed", "--count", "25", "--seed", "11")
	require.NoError(t, err)
	var seeded int
	_, err = fmt.Sscanf(out, "inserted %d sample records", &seeded)
	require.NoError(t, err)
	require.Positive(t, seeded)

	out, err = runCLI(t, "summary", "--timeframe", "all", "--by", "month")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Records: %d", seeded))
	assert.Contains(t, out, "Series")
	assert.Contains(t, out, "Spending by category")

	out, err = runCLI(t, "summary", "--timeframe", "all", "--by", "month", "--pivot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bucket"), out)

	exported := filepath.Join(dir, "out", "records.json")
	out, err = runCLI(t, "export", exported)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("exported %d records to %s\n", seeded, exported), out)

	_, err = runCLI(t, "reset")
	require.ErrorIs(t, err, errNeedYes)

	out, err = runCLI(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "database reset\n", out)

	out, err = runCLI(t, "summary", "--timeframe", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 0")

	out, err = runCLI(t, "import", exported)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("imported %d, skipped 0, errors 0\n", seeded), out)

	out, err = runCLI(t, "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "new candidates")

	_, err = runCLI(t, "import", exported, "--format", "nope")
	require.ErrorContains(t, err, `unknown import format "nope"`)
}

func TestResolveRange(t *testing.T) {
	t.Parallel()

	cfg := config.Config{UI: config.UIConfig{Timezone: "Australia/Melbourne"}}
	// 2026-02-28 20:00 UTC is already March 1st in Melbourne.
	now := time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)
	rng, err := resolveRange(cfg, "this-month", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), rng.End)

	_, err = resolveRange(cfg, "fortnight", now)
	require.ErrorIs(t, err, period.ErrUnknownPreset)
}

func TestPrintSummaryEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, service.Summary{Granularity: period.Week}, "$"))
	assert.Contains(t, buf.String(), "Income: $0.00  Expenses: $0.00  Net: $0.00")
	assert.NotContains(t, buf.String(), "Series")
}
