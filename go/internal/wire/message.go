package wire

// MessageType identifies the kind of a wire message. The payload shape is fully
// determined by the type.
type MessageType string

const (
	MessageTypeConnect      MessageType = "CONNECT"
	MessageTypeDisconnect   MessageType = "DISCONNECT"
	MessageTypeGameState    MessageType = "GAME_STATE"
	MessageTypePlayerAction MessageType = "PLAYER_ACTION"
	MessageTypeChat         MessageType = "CHAT"
	MessageTypePing         MessageType = "PING"
	MessageTypePong         MessageType = "PONG"
	MessageTypeError        MessageType = "ERROR"
)

var knownMessageTypes = map[MessageType]struct{}{
	MessageTypeConnect:      {},
	MessageTypeDisconnect:   {},
	MessageTypeGameState:    {},
	MessageTypePlayerAction: {},
	MessageTypeChat:         {},
	MessageTypePing:         {},
	MessageTypePong:         {},
	MessageTypeError:        {},
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	_, ok := knownMessageTypes[t]
	return ok
}

// Message is the envelope exchanged between peers. It carries no ordering
// guarantee of its own; ordering comes from the underlying stream.
//
// Payload numbers survive a round trip as int64 when whole and float64
// otherwise, whichever codec carried them.
type Message struct {
	Type     MessageType    `json:"msg_type"`
	Payload  map[string]any `json:"payload"`
	SenderID *string        `json:"sender_id"`
}

// NewMessage builds a message with a non-nil payload.
func NewMessage(t MessageType, payload map[string]any) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{Type: t, Payload: payload}
}

// WithSender returns a copy of m stamped with the given sender id.
func (m Message) WithSender(id string) Message {
	m.SenderID = &id
	return m
}

// Sender returns the sender id, or "" when the message carries none.
func (m Message) Sender() string {
	if m.SenderID == nil {
		return ""
	}
	return *m.SenderID
}
