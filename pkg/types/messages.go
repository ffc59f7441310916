// Package types holds the client-facing wire protocol of the match server.
//
// Server -> Client frames:
//
//	{"event": "messages", "data": [Message...]}          pushed updates
//	{"event": "ack", "ack": 7, "data": [Message...]}     response to command 7
//
// Every Message is an envelope {"type": ..., "data": ...}.
package types

type MessageType string

const (
	TypeStart             MessageType = "start"
	TypeEnd               MessageType = "end"
	TypeUpdateTeams       MessageType = "updateTeams"
	TypeUpdateCharacters  MessageType = "updateCharacters"
	TypeRemoveCharacters  MessageType = "removeCharacters"
	TypeUpdateSeats       MessageType = "updateSeats"
	TypeUpdateItems       MessageType = "updateItems"
	TypeUpdateCountries   MessageType = "updateCountries"
	TypeUpdateProjectiles MessageType = "updateProjectiles"
	TypeRemoveProjectiles MessageType = "removeProjectiles"
)

type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

const (
	EventMessages = "messages"
	EventAck      = "ack"
	EventError    = "error"
)

type Frame struct {
	Event string    `json:"event"`
	Ack   *int64    `json:"ack,omitempty"`
	Data  []Message `json:"data"`
	Error string    `json:"error,omitempty"`
}

func Push(msgs ...Message) Frame {
	return Frame{Event: EventMessages, Data: msgs}
}

// Reply answers command ack. A nil ack means the client did not ask for one.
func Reply(ack *int64, msgs ...Message) Frame {
	if msgs == nil {
		msgs = []Message{}
	}
	return Frame{Event: EventAck, Ack: ack, Data: msgs}
}

func (f Frame) Types() []MessageType {
	out := make([]MessageType, 0, len(f.Data))
	for _, m := range f.Data {
		out = append(out, m.Type)
	}
	return out
}
