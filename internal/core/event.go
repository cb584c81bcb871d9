package core

// Event is an outbound notification queued for one session. Name is the wire
// event name; Data is encoded as the frame payload.
type Event struct {
	Name string
	Data any
}

func newEvent(name string, data any) *Event {
	return &Event{Name: name, Data: data}
}
