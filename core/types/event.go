package types

// Event represents a typed event emitted by a committed invocation.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	// Sequence is assigned by the node when the invocation commits.
	Sequence uint64 `json:"sequence,omitempty"`
	// Time is the ledger timestamp of the invocation that produced the event.
	Time uint64 `json:"time,omitempty"`
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	if e.Attributes != nil {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}
