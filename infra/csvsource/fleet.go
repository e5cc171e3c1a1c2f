package csvsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/kilianp07/peakopt/core/model"
)

// Battery table columns.
const (
	ColCapacity   = "batt_wh"
	ColCharge     = "batt_p_ch"
	ColDischarge  = "batt_p_dch"
	ColInitial    = "batt_soc"
	ColEfficiency = "batt_eff"
)

// ReadFleet reads a battery table indexed by unit ID. The battery columns may
// appear in any order; other columns are ignored.
func ReadFleet(r io.Reader) (model.Fleet, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	header = lo.Map(header, func(h string, _ int) string { return strings.TrimSpace(h) })

	cols := []string{ColCapacity, ColCharge, ColDischarge, ColInitial, ColEfficiency}
	pos := make([]int, len(cols))
	for i, c := range cols {
		pos[i] = lo.IndexOf(header, c)
		if pos[i] < 1 {
			return nil, fmt.Errorf("%w: missing column %s", ErrFormat, c)
		}
	}

	var fleet model.Fleet
	line := 1
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
		}
		vals := make([]float64, len(cols))
		for i, p := range pos {
			if vals[i], err = ParseValue(rec[p]); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, cols[i], err)
			}
		}
		fleet = append(fleet, model.BatterySpec{
			Unit:       model.UnitID(strings.TrimSpace(rec[0])),
			CapacityWh: vals[0],
			ChargeW:    vals[1],
			DischargeW: vals[2],
			InitialWh:  vals[3],
			Efficiency: vals[4],
		})
	}
	return fleet, nil
}

// ReadFleetFile reads the battery table at path.
func ReadFleetFile(path string) (model.Fleet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	fleet, err := ReadFleet(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fleet, nil
}
