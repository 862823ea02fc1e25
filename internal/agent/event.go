package agent

import "redgram/internal/protocol"

// Local event types delivered to subscribers. These are the normalized
// forms of the relay's wire events plus the connectivity status stream.
const (
	EventStatus      = "STATUS"
	EventUserSync    = "USER_SYNC"
	EventUserJoined  = "USER_JOINED"
	EventNewMessage  = "NEW_MESSAGE"
	EventMessageRead = "MESSAGE_READ"
)

// Connectivity values carried by STATUS events. Disconnection is never
// surfaced as an error; it is a status that heals itself.
const (
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
)

// Event is one normalized local event. Type selects which fields are set:
//
//	STATUS        Status
//	USER_SYNC     Users (full replace of the observer's roster cache)
//	USER_JOINED   Profile
//	NEW_MESSAGE   Message
//	MESSAGE_READ  ChatID, MessageIDs, ReaderID
type Event struct {
	Type string

	Status     string
	Users      []protocol.Profile
	Profile    *protocol.Profile
	Message    *protocol.Message
	ChatID     string
	MessageIDs []string
	ReaderID   string
}
