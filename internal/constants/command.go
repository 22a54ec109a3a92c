package constants

// Action is an explicit command issued to the backup device.
type Action string

const (
	// ActionEnable asks the backup device to bring the backup link up.
	ActionEnable Action = "enable"
	// ActionDisable asks the backup device to take the backup link down.
	ActionDisable Action = "disable"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionEnable || a == ActionDisable
}

const (
	DefaultOutputSizeLimit  = 64 * 1024 // 64KB
	DefaultMaxExecutionTime = 30        // 30 seconds
)
