package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/infra/csvsource"
)

var inputLabels = []string{"base load forecast", "solar PV forecast", "battery specifications"}

// inputArgs accepts exactly the load, solar and battery CSV paths.
func inputArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(len(inputLabels))(cmd, args); err != nil {
		return err
	}
	for i, a := range args {
		if err := checkFile(inputLabels[i], a, ".csv"); err != nil {
			return err
		}
	}
	return nil
}

func checkFile(label, path, suffix string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s file not found in '%s'", label, path)
	}
	if filepath.Ext(path) != suffix {
		return fmt.Errorf("path '%s' not a %s file", path, suffix)
	}
	return nil
}

func readInputs(args []string) (pipeline.Inputs, error) {
	load, err := csvsource.ReadFrameFile(args[0])
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("read load: %w", err)
	}
	solar, err := csvsource.ReadFrameFile(args[1])
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("read solar: %w", err)
	}
	fleet, err := csvsource.ReadFleetFile(args[2])
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("read battery: %w", err)
	}
	return pipeline.Inputs{Load: load, Solar: solar, Fleet: fleet}, nil
}
