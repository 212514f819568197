package session

type State int

const (
	StateAwaitingHeader State = iota
	StateReceivingPayload
	StateAcknowledging
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeader:
		return "awaiting_header"
	case StateReceivingPayload:
		return "receiving_payload"
	case StateAcknowledging:
		return "acknowledging"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
