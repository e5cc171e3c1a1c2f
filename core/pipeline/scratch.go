package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Scratch file names.
const (
	DataFile     = "instance.dzn"
	SolutionFile = "solution.json"
	LogFile      = "solver.log"
)

// Artifacts are the scratch files of one run.
type Artifacts struct {
	Dir      string
	Data     string
	Solution string
	Log      string
}

func artifactsIn(dir string) Artifacts {
	return Artifacts{
		Dir:      dir,
		Data:     filepath.Join(dir, DataFile),
		Solution: filepath.Join(dir, SolutionFile),
		Log:      filepath.Join(dir, LogFile),
	}
}

// makeDirs creates dir and its missing parents. It returns the directories it
// created, deepest first.
func makeDirs(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return missing, nil
}

// removeStale deletes results left in a reused scratch directory so that a
// solver exiting without output cannot pass off an earlier result.
func removeStale(a Artifacts) error {
	for _, f := range []string{a.Solution, a.Log} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// cleanup deletes the run's scratch files, tolerating missing ones, then
// removes the scratch directory and each directory in created that is left
// empty.
func cleanup(a Artifacts, created []string) error {
	if dir := filepath.Clean(a.Dir); len(created) == 0 || created[0] != dir {
		created = append([]string{dir}, created...)
	}
	var errs []error
	for _, f := range []string{a.Data, a.Solution, a.Log} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, d := range created {
		entries, err := os.ReadDir(d)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
