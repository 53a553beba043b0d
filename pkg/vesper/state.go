package vesper

import "fmt"

// State is the protocol phase of a connection.
type State uint8

const (
	// StateIdle waits for the next request head.
	StateIdle State = iota
	// StateAwaitingBody accumulates the body of the current request.
	StateAwaitingBody
	// StateSendingResponse has a request in flight.
	StateSendingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBody:
		return "awaiting-body"
	case StateSendingResponse:
		return "sending-response"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// StateError reports a transition attempted from the wrong state. It always
// points at a bug in the code driving the connection.
type StateError struct {
	Event string
	From  State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("vesper: invalid state for %s: %s", e.Event, e.From)
}

// RequestReceived moves idle to awaiting-body.
func (s *State) RequestReceived() error {
	return s.transition("request received", StateIdle, StateAwaitingBody)
}

// RequestComplete moves awaiting-body to sending-response.
func (s *State) RequestComplete() error {
	return s.transition("request complete", StateAwaitingBody, StateSendingResponse)
}

// ResponseComplete moves sending-response back to idle.
func (s *State) ResponseComplete() error {
	return s.transition("response complete", StateSendingResponse, StateIdle)
}

func (s *State) transition(event string, from, to State) error {
	if *s != from {
		return &StateError{Event: event, From: *s}
	}
	*s = to
	return nil
}
