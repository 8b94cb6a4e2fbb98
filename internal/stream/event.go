package stream

// EventType tags one unit of a turn's output stream.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
	EventPing  EventType = "ping"
)

// Event is one frame of a chat turn as seen by the HTTP consumer.
// Token carries a text fragment, Done the full reply, Error a human-readable
// message; Ping has no payload.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func Token(text string) Event { return Event{Type: EventToken, Content: text} }

func Done(full string) Event { return Event{Type: EventDone, Content: full} }

func Error(msg string) Event { return Event{Type: EventError, Content: msg} }

func Ping() Event { return Event{Type: EventPing} }
