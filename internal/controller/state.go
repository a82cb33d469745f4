package controller

// State is the controller lifecycle stage.
type State int32

const (
	StateUninitialized State = iota
	StateLoadingConfig
	StateApplyingTheme
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingConfig:
		return "loading-config"
	case StateApplyingTheme:
		return "applying-theme"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
