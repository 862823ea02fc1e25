package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types sent by clients to the relay.
const (
	TypeRegister    = "REGISTER"
	TypeSendMessage = "SEND_MESSAGE"
	TypeReadReceipt = "READ_RECEIPT"
	TypePresence    = "PRESENCE"
)

// Frame types sent by the relay to clients.
const (
	TypeInitState   = "INIT_STATE"
	TypeUserJoined  = "USER_JOINED"
	TypeNewMessage  = "NEW_MESSAGE"
	TypeMessageRead = "MESSAGE_READ"
)

// Message status values. The relay only ever stamps "sent"; the
// later transitions live entirely on the client side.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Sender perspective values. The sending client writes "me" for its own
// copy; the relay rewrites to "them" before fan-out so receivers render
// the message on the correct side.
const (
	SenderMe   = "me"
	SenderThem = "them"
)

var ErrUnknownType = errors.New("unknown frame type")

// Privacy holds per-field visibility settings chosen by the user.
// Values are "everybody" or "nobody".
type Privacy struct {
	ProfilePhoto string `json:"profilePhoto,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	LastSeen     string `json:"lastSeen,omitempty"`
	Stories      string `json:"stories,omitempty"`
}

// Profile is a user identity as registered with the relay.
// Username is the unique key in the roster; ID is a secondary stable key.
type Profile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Username    string   `json:"username"`
	Phone       string   `json:"phone"`
	Bio         string   `json:"bio"`
	AvatarColor string   `json:"avatarColor"`
	IsPremium   bool     `json:"isPremium,omitempty"`
	Privacy     *Privacy `json:"privacy,omitempty"`
}

// Message is a single chat message. ChatID is an opaque routing tag to
// the relay: a peer user id for direct messages or a group id for group
// messages. Receivers decide relevance themselves.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Text      string `json:"text"`
	Sender    string `json:"sender,omitempty"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
}

// ClientFrame is the envelope for everything a client sends to the relay.
// Exactly one payload group is populated, selected by Type.
type ClientFrame struct {
	Type string `json:"type"`

	// REGISTER
	Profile *Profile `json:"profile,omitempty"`

	// SEND_MESSAGE
	Message *Message `json:"message,omitempty"`
	IsGroup bool     `json:"isGroup,omitempty"`

	// READ_RECEIPT
	ChatID     string   `json:"chatId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
	ReaderID   string   `json:"readerId,omitempty"`

	// PRESENCE
	UserID string `json:"userId,omitempty"`
}

// ServerFrame is the envelope for everything the relay sends to clients.
type ServerFrame struct {
	Type string `json:"type"`

	// INIT_STATE
	Users []Profile `json:"users,omitempty"`

	// USER_JOINED
	Profile *Profile `json:"profile,omitempty"`

	// NEW_MESSAGE
	Message *Message `json:"message,omitempty"`

	// MESSAGE_READ
	ChatID     string   `json:"chatId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
	ReaderID   string   `json:"readerId,omitempty"`
}

// DecodeClientFrame parses and validates a raw inbound frame from a
// client. Unknown types are rejected explicitly so the contract stays
// auditable; callers log and drop the frame.
func DecodeClientFrame(data []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode client frame: %w", err)
	}
	switch f.Type {
	case TypeRegister:
		if f.Profile == nil {
			return nil, fmt.Errorf("%s frame missing profile", f.Type)
		}
	case TypeSendMessage:
		if f.Message == nil {
			return nil, fmt.Errorf("%s frame missing message", f.Type)
		}
	case TypeReadReceipt, TypePresence:
		// No required payload beyond the scalar fields.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	return &f, nil
}

// DecodeServerFrame parses and validates a raw frame received from the relay.
func DecodeServerFrame(data []byte) (*ServerFrame, error) {
	var f ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}
	switch f.Type {
	case TypeInitState, TypeMessageRead:
	case TypeUserJoined:
		if f.Profile == nil {
			return nil, fmt.Errorf("%s frame missing profile", f.Type)
		}
	case TypeNewMessage:
		if f.Message == nil {
			return nil, fmt.Errorf("%s frame missing message", f.Type)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	return &f, nil
}

// Encode marshals a frame for the wire.
func (f *ClientFrame) Encode() ([]byte, error) { return json.Marshal(f) }

// Encode marshals a frame for the wire.
func (f *ServerFrame) Encode() ([]byte, error) { return json.Marshal(f) }
