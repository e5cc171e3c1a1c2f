package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/core/solver"
)

type stubSolver struct{ doc string }

func (s stubSolver) Run(_ context.Context, req solver.Request) error {
	return os.WriteFile(req.Output, []byte(s.doc), 0o644)
}

func writeInputs(t *testing.T, dir string) []string {
	t.Helper()
	files := map[string]string{
		"load.csv":    "datetime,h1,h2\n2024-03-01 00:00:00+00:00,1,2\n2024-03-01 00:30:00+00:00,3,4\n",
		"solar.csv":   "datetime,h1\n2024-03-01 00:00:00+00:00,0\n2024-03-01 00:30:00+00:00,0.5\n",
		"battery.csv": "unit,batt_wh,batt_p_ch,batt_p_dch,batt_soc,batt_eff\nh1,5000,2000,2000,1000,0.9\n",
	}
	var paths []string
	for _, name := range []string{"load.csv", "solar.csv", "battery.csv"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(files[name]), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	data := "scratch_root: " + filepath.Join(dir, "temp") + "\n" +
		"runlog:\n  backend: jsonl\n  path: " + filepath.Join(dir, "runs.jsonl") + "\n"
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func execute(t *testing.T, args []string, opts ...pipeline.Option) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(opts...)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeInputs(t, dir)
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "schedule.csv")

	stdout, err := execute(t, append([]string{"solve", "-c", cfg, "-o", out, "--cleanup"}, in...),
		pipeline.WithInvoker(stubSolver{doc: `{"battery_load": [[0.5], [-1.0]]}`}))
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 units x 2 timesteps")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "datetime,h1\n2024-03-01 00:00:00+00:00,0.5\n2024-03-01 00:30:00+00:00,-1.0\n", string(data))

	stdout, err = execute(t, []string{"runs", "-c", cfg})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "success")
}

func TestSolveArgs(t *testing.T) {
	dir := t.TempDir()
	in := writeInputs(t, dir)

	_, err := execute(t, []string{"solve", in[0], in[1]})
	assert.Error(t, err)

	_, err = execute(t, []string{"solve", in[0], in[1], filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "battery specifications file not found")

	txt := filepath.Join(dir, "battery.txt")
	require.NoError(t, os.WriteFile(txt, nil, 0o644))
	_, err = execute(t, []string{"solve", in[0], in[1], txt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a .csv file")
}

func TestSolveValidationError(t *testing.T) {
	dir := t.TempDir()
	in := writeInputs(t, dir)
	require.NoError(t, os.WriteFile(in[1], []byte("datetime,h1\n2024-03-01 01:00:00+00:00,0\n2024-03-01 01:30:00+00:00,0\n"), 0o644))

	_, err := execute(t, append([]string{"solve", "-c", writeConfig(t, dir)}, in...),
		pipeline.WithInvoker(stubSolver{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_alignment")
	assert.NoDirExists(t, filepath.Join(dir, "temp"))
}

func TestEncodeCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeInputs(t, dir)
	out := filepath.Join(dir, "out", "instance.dzn")

	stdout, err := execute(t, append([]string{"encode", "-c", writeConfig(t, dir), "-o", out, "--alpha", "0.25"}, in...))
	require.NoError(t, err)
	assert.Contains(t, stdout, "(30 min)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alpha = 0.25;")
}

func TestTariffCommand(t *testing.T) {
	stdout, err := execute(t, []string{"tariff", "--start", "2024-01-01T00:00:00Z", "--end", "2024-01-01T02:00:00Z", "--step", "1h"})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "datetime,import,export", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01 00:00:00+00:00,"))

	_, err = execute(t, []string{"tariff", "--start", "2024-01-01T02:00:00Z", "--end", "2024-01-01T00:00:00Z"})
	assert.Error(t, err)
}

func TestRunsDisabled(t *testing.T) {
	_, err := execute(t, []string{"runs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run log disabled")
}

func TestPluginsCommand(t *testing.T) {
	stdout, err := execute(t, []string{"plugins"})
	require.NoError(t, err)
	assert.Contains(t, stdout, "metrics: influx, nop, prometheus")
	assert.Contains(t, stdout, "publishers: mqtt")
}
