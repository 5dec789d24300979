package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/config"
)

const stateFileName = "state.json"

// AppState is remembered between CLI runs.
type AppState struct {
	ActiveSessionID string `json:"active_session_id,omitempty"`
	LastAddress     string `json:"last_address,omitempty"`
	LastDeviceName  string `json:"last_device_name,omitempty"`
}

// StateFile manages the application state file.
type StateFile struct {
	path string

	mu    sync.RWMutex
	state AppState
}

// DefaultStatePath returns the state file path in the config directory.
func DefaultStatePath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// NewStateFile loads the state at path. A missing file starts empty.
func NewStateFile(path string) (*StateFile, error) {
	sf := &StateFile{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return sf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, &sf.state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return sf, nil
}

// NewDefaultStateFile creates a state file manager with the default path.
func NewDefaultStateFile() (*StateFile, error) {
	path, err := DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return NewStateFile(path)
}

// State returns the current state.
func (sf *StateFile) State() AppState {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.state
}

// SetActiveSession records the session being recorded.
func (sf *StateFile) SetActiveSession(sessionID string) error {
	return sf.update(func(s *AppState) { s.ActiveSessionID = sessionID })
}

// ClearActiveSession clears the active session ID.
func (sf *StateFile) ClearActiveSession() error {
	return sf.update(func(s *AppState) { s.ActiveSessionID = "" })
}

// SetLastDevice remembers the last connected cube.
func (sf *StateFile) SetLastDevice(address, name string) error {
	return sf.update(func(s *AppState) {
		s.LastAddress = address
		s.LastDeviceName = name
	})
}

// LastAddress returns the last connected cube address.
func (sf *StateFile) LastAddress() string {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.state.LastAddress
}

func (sf *StateFile) update(fn func(*AppState)) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	fn(&sf.state)
	return sf.save()
}

func (sf *StateFile) save() error {
	data, err := json.MarshalIndent(sf.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sf.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(sf.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}
