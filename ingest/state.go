package ingest

// State is the position of an Ingester in its life cycle.
//
//	Idle -> ParsingHeader -> Streaming <-> Flushing
//	                              \-> Finalizing -> Done
//
// Failed is reachable from every state before Done.
type State int

const (
	Idle State = iota
	ParsingHeader
	Streaming
	Flushing
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ParsingHeader:
		return "parsing-header"
	case Streaming:
		return "streaming"
	case Flushing:
		return "flushing"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}
