package runlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2022, 7, 20, 6, 0, 0, 0, time.UTC)

func sample(id string, start time.Time, status string) Record {
	return Record{
		RunID:       id,
		Start:       start,
		End:         start.Add(90 * time.Second),
		Status:      status,
		Stage:       "write",
		Units:       3,
		Steps:       48,
		StepMinutes: 30,
		Alpha:       0.5,
		Output:      "schedule.csv",
	}
}

// exercise appends three runs out of order and checks filtering and ordering.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sample("b", t0.Add(time.Hour), StatusSuccess)))
	require.NoError(t, s.Append(ctx, sample("a", t0, StatusSuccess)))
	failed := sample("c", t0.Add(2*time.Hour), StatusFailure)
	failed.Stage, failed.Error = "solve", "solver execution failed"
	require.NoError(t, s.Append(ctx, failed))

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.True(t, all[0].Start.Equal(t0))
	assert.Equal(t, 90*time.Second, all[0].Duration())

	out, err := s.Query(ctx, Query{Status: StatusFailure})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "solve", out[0].Stage)
	assert.Equal(t, "solver execution failed", out[0].Error)

	out, err = s.Query(ctx, Query{Start: t0.Add(30 * time.Minute), End: t0.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].RunID)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "hist", "runs.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sample("a", t0, StatusSuccess)))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestRotatingJSONLStore_ReadsBackups(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRotatingJSONLStore(filepath.Join(dir, "runs.jsonl"), 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sample("a", t0, StatusSuccess)))
	require.NoError(t, s.logger.Rotate())
	require.NoError(t, s.Append(ctx, sample("b", t0.Add(time.Hour), StatusSuccess)))

	files, err := filepath.Glob(filepath.Join(dir, "runs*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 2, "expected active file and one backup")

	out, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].RunID)
	assert.Equal(t, "b", out[1].RunID)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		cfg  Config
		want any
	}{
		{Config{}, NopStore{}},
		{Config{Backend: BackendNone}, NopStore{}},
		{Config{Backend: BackendJSONL, Path: filepath.Join(dir, "a.jsonl")}, &JSONLStore{}},
		{Config{Backend: BackendJSONL, Path: filepath.Join(dir, "b.jsonl"), MaxSizeMB: 5}, &RotatingJSONLStore{}},
		{Config{Backend: BackendSQLite, Path: filepath.Join(dir, "c.db")}, &SQLiteStore{}},
	}
	for _, c := range cases {
		s, err := NewStore(c.cfg)
		require.NoError(t, err, "backend %q", c.cfg.Backend)
		assert.IsType(t, c.want, s)
		_ = s.Close()
	}
	_, err := NewStore(Config{Backend: "csv"})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, BackendNone, c.Backend)
	require.NoError(t, c.Validate())

	c = Config{Backend: BackendSQLite}
	c.SetDefaults()
	assert.Equal(t, "runs.db", c.Path)
	require.NoError(t, c.Validate())

	c = Config{Backend: BackendJSONL}
	c.SetDefaults()
	assert.Equal(t, "runs.jsonl", c.Path)

	assert.Error(t, Config{Backend: "xml", Path: "x"}.Validate())
	assert.Error(t, Config{Backend: BackendJSONL, Path: "x", MaxBackups: -1}.Validate())
}
