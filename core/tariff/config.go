package tariff

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSchedule loads a Schedule from a JSON or YAML file and validates it.
func LoadSchedule(path string) (Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schedule{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeSchedule(f, ext)
}

// DecodeSchedule reads a Schedule from r in the given format ("yaml" or "json").
func DecodeSchedule(r io.Reader, format string) (Schedule, error) {
	var s Schedule
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported format: %s", format)
	}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}
