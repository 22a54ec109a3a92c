package state_managers

import (
	"sync"
	"time"

	"github.com/benmeehan/link-failover/internal/liveness"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/rs/zerolog"
)

// MonitorState is what the monitor keeps across restarts: the engine state
// and the issue time of the last broker command handed to the actuator.
type MonitorState struct {
	liveness.State
	HandledCommandAt *time.Time `json:"handled_command_at,omitempty"`
}

// EngineStateManager handles file-based persistence of the monitor state.
// An empty path disables persistence.
type EngineStateManager struct {
	filePath string
	fileOps  file.FileOperations
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewEngineStateManager initializes a new EngineStateManager
func NewEngineStateManager(filePath string, fileOps file.FileOperations, logger zerolog.Logger) *EngineStateManager {
	return &EngineStateManager{
		filePath: filePath,
		fileOps:  fileOps,
		logger:   logger,
	}
}

// LoadState reads the monitor state. A missing file yields the zero state.
func (sm *EngineStateManager) LoadState() (MonitorState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var state MonitorState
	if sm.filePath == "" {
		return state, nil
	}

	exists, err := sm.fileOps.IsFileExists(sm.filePath)
	if err != nil {
		sm.logger.Error().Err(err).Str("path", sm.filePath).Msg("Failed to stat state file")
		return state, err
	}
	if !exists {
		return state, nil
	}

	if err := sm.fileOps.ReadJsonFile(sm.filePath, &state); err != nil {
		sm.logger.Error().Err(err).Str("path", sm.filePath).Msg("Failed to read state file")
		return MonitorState{}, err
	}
	return state, nil
}

// SaveState writes the monitor state to the file
func (sm *EngineStateManager) SaveState(state MonitorState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.filePath == "" {
		return nil
	}
	if err := sm.fileOps.WriteJsonFile(sm.filePath, state); err != nil {
		sm.logger.Error().Err(err).Str("path", sm.filePath).Msg("Failed to write state file")
		return err
	}
	return nil
}
