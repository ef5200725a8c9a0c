// Package prefs manages operator ordering preferences. Preferences come from
// two places: a YAML file holding run-wide targets and constraints, and a
// small SQLite store holding per-item overrides set through the API or CLI.
// The Manager merges both into the effective targets for a run and can watch
// the YAML file for edits so long-running servers pick up changes without a
// restart.
package prefs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// Preferences is the on-disk YAML preference document.
type Preferences struct {
	// Targets holds the coverage targets and never-order list.
	Targets policy.Targets `yaml:"targets"`

	// Constraints holds run-level ordering constraints such as budget
	// caps and per-vendor keg maximums.
	Constraints ordering.Constraints `yaml:"constraints"`
}

// LoadFile reads and parses a preferences YAML file. A missing file is not
// an error; it returns empty preferences so a run can proceed on defaults.
func LoadFile(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Preferences{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences file %q: %w", path, err)
	}

	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preferences file %q: %w", path, err)
	}

	return &p, nil
}
