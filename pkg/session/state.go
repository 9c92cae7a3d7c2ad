package session

// State is the decode state of a Session.
type State int

const (
	// StateIdle means no demuxer is open; the next request reseeks.
	StateIdle State = iota
	// StateSeeking means the demuxer is being rebuilt at a GOP start.
	StateSeeking
	// StateLinear means the demuxer is positioned right after the last
	// delivered frame.
	StateLinear
	// StateDecoding means packets are being fed to the decoder.
	StateDecoding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StateLinear:
		return "linear"
	case StateDecoding:
		return "decoding"
	default:
		return "unknown"
	}
}
