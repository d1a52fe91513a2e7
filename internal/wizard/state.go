package wizard

// State is a wizard step.
type State int

const (
	// StateIdle is a session that has not been initialised.
	StateIdle State = iota
	StateSelectSources
	StateMapFields
	StatePreviewResolve
	StateCommitted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelectSources:
		return "select-sources"
	case StateMapFields:
		return "map-fields"
	case StatePreviewResolve:
		return "preview-resolve"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
