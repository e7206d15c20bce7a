package editor

// MessageType names a message exchanged with an editor client.
type MessageType string

// Server to client.
const (
	MessageSession   MessageType = "session"
	MessageHighlight MessageType = "highlight"
	MessageScroll    MessageType = "scroll"
	MessageReload    MessageType = "reload"
	MessageError     MessageType = "error"
)

// Client to server.
const (
	MessageText   MessageType = "text"
	MessageResume MessageType = "resume"
)

// Message is the envelope for every editor message in both directions.
// Scroll messages carry Scroll; text messages carry Content.
type Message struct {
	Type     MessageType `json:"type"`
	Session  string      `json:"session,omitempty"`
	Version  uint64      `json:"version,omitempty"`
	Content  *string     `json:"content,omitempty"`
	HTML     string      `json:"html,omitempty"`
	Scroll   *Scroll     `json:"scroll,omitempty"`
	Failures []string    `json:"failures,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Sink receives messages for one client. Publish is called with the session
// lock held and must not block or call back into the session.
type Sink interface {
	Publish(msg Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg Message)

// Publish calls f(msg).
func (f SinkFunc) Publish(msg Message) { f(msg) }

// Discard drops every message.
var Discard Sink = SinkFunc(func(Message) {})
