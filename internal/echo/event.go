package echo

// closeReason - describes why the session has ended.
type closeReason int

const (
	_ closeReason = iota
	// reasonEOF - client closed its side of connection
	reasonEOF
	// reasonQuit - client sent quit command
	reasonQuit
	// reasonShutdown - server is stopping
	reasonShutdown
	// reasonError - read or write failed
	reasonError
)

func (r closeReason) String() string {
	switch r {
	case reasonEOF:
		return "eof"
	case reasonQuit:
		return "quit"
	case reasonShutdown:
		return "shutdown"
	case reasonError:
		return "error"
	default:
		return "unknown"
	}
}
