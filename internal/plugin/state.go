package plugin

// State is the lifecycle state of a plugin.
type State int

// Plugin states.
//
//	Discovered -> Validated -> Loading -> Active
//	Loading -> Denied
//	Active -> Deactivating -> Unloaded -> Loading
const (
	// StateDiscovered - manifest found, not yet validated.
	StateDiscovered State = iota

	// StateValidated - manifest valid, plugin not loaded (disabled or not yet loaded).
	StateValidated

	// StateLoading - trust gating and instantiation in progress.
	StateLoading

	// StateActive - plugin is loaded and its registrations are live.
	StateActive

	// StateDeactivating - plugin is being torn down.
	StateDeactivating

	// StateUnloaded - plugin was active and has been torn down.
	StateUnloaded

	// StateDenied - validation, trust or loading failed; see the recorded error.
	StateDenied
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateValidated:
		return "validated"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	case StateUnloaded:
		return "unloaded"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// IsLoaded returns true if the plugin holds live registrations.
func (s State) IsLoaded() bool {
	return s == StateActive || s == StateDeactivating
}
