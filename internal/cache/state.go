package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StateVersion is the current state.json schema version.
const StateVersion = "1.0.0"

// State validation errors.
var (
	// ErrStateVersion indicates an incompatible state.json version.
	ErrStateVersion = errors.New("unsupported state version")
	// ErrNegativeCost indicates a negative recorded cost.
	ErrNegativeCost = errors.New("state cost_spent must be non-negative")
	// ErrBadRatio indicates a compression ratio outside [0, 1].
	ErrBadRatio = errors.New("state compression_ratio must be between 0 and 1")
)

// UserSelections are conflict-handling preferences remembered between
// runs.
type UserSelections struct {
	FileConflictAction string `json:"file_conflict_action,omitempty"`
	ApplyToAll         bool   `json:"apply_to_all"`
}

// State is persisted to .rulesmith/state.json and survives cleanup. It
// records the previous run's outputs and metrics alongside user
// preferences.
type State struct {
	Version          string         `json:"version"`
	LastRun          time.Time      `json:"last_run"`
	UserSelections   UserSelections `json:"user_selections"`
	OutputFiles      []string       `json:"output_files"`
	CostSpent        float64        `json:"cost_spent"`
	TokenCount       int            `json:"token_count"`
	CompressionRatio float64        `json:"compression_ratio"`
}

// NewState returns a State stamped with the current version and time.
func NewState() *State {
	return &State{
		Version:          StateVersion,
		LastRun:          time.Now().UTC(),
		CompressionRatio: 1.0,
	}
}

// Validate checks State invariants.
func (s *State) Validate() error {
	if s.CostSpent < 0 {
		return ErrNegativeCost
	}

	if s.CompressionRatio < 0 || s.CompressionRatio > 1 {
		return ErrBadRatio
	}

	return nil
}

// SaveState writes the state file atomically via a temp-file rename.
func (m *Manager) SaveState(state *State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	path := filepath.Join(m.dir, stateJSON)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}

	return nil
}

// LoadState reads the state file. A missing file returns (nil, nil); a
// corrupt or invalid file returns an error.
func (m *Manager) LoadState() (*State, error) {
	path := filepath.Join(m.dir, stateJSON)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	// Only the major version gates compatibility.
	if major(state.Version) != major(StateVersion) {
		return nil, fmt.Errorf("%w: %s", ErrStateVersion, state.Version)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	return &state, nil
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}

	return version
}
