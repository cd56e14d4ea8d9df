package upload

// State is a step of the upload state machine.
type State int

// Upload states, in order. StateCompleted and StateFailed are terminal.
const (
	StateCreated State = iota
	StateDeterminingOffset
	StateTransferring
	StateCompleted
	// StateFailed is entered when a transfer fails after its chunk was taken from the source.
	// The upload can only continue with a new Uploader through Resume.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDeterminingOffset:
		return "determining offset"
	case StateTransferring:
		return "transferring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
