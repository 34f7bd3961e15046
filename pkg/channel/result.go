package channel

// Kind classifies the outcome of a socket operation.
type Kind uint8

const (
	// Ok means the operation completed.
	Ok Kind = iota
	// Transient errors are retried with the identical operation.
	Transient
	// Fatal errors close the affected direction and surface only as events.
	Fatal
	// Refused means the peer rejected a connect attempt.
	Refused
	// Unreachable means no address for the target could be reached.
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	case Refused:
		return "refused"
	case Unreachable:
		return "unreachable"
	}
	return "unknown"
}
