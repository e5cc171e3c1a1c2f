package model

import (
	"slices"
	"strconv"
	"strings"
)

// UnitID identifies a site or asset. IDs come from CSV headers and battery
// tables, so they are kept as opaque strings.
type UnitID string

// CompareUnits orders unit IDs numerically when both parse as integers and
// lexically otherwise. Numeric IDs sort before non-numeric ones.
func CompareUnits(a, b UnitID) int {
	na, aErr := strconv.ParseInt(strings.TrimSpace(string(a)), 10, 64)
	nb, bErr := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
		return strings.Compare(string(a), string(b))
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// SortUnits returns a sorted copy of units in canonical order.
func SortUnits(units []UnitID) []UnitID {
	out := slices.Clone(units)
	slices.SortFunc(out, CompareUnits)
	return out
}

// UnitStrings converts ids to plain strings, e.g. for CSV headers.
func UnitStrings(units []UnitID) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = string(u)
	}
	return out
}
