package relay

import (
	"github.com/rs/zerolog"

	"redgram/internal/metrics"
	"redgram/internal/protocol"
)

// Hub is the central relay point. It holds the roster and the set of
// active connections, and fans every inbound event out to all other
// connected peers. It has no concept of chats, groups, or delivery; it
// trusts the payload and merely relays it.
type Hub struct {
	// Registered connections. Only the run loop touches this map.
	clients map[*Client]bool

	// The roster of every profile seen so far. Same ownership rule.
	roster *Roster

	register   chan *Client
	unregister chan *Client

	// Inbound frames from any connection, processed one at a time so no
	// peer can ever observe a partial fan-out.
	inbound chan inboundFrame

	log zerolog.Logger
}

type inboundFrame struct {
	from    *Client
	payload []byte
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		roster:     &Roster{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run is the hub's event loop. It must run in its own goroutine and is
// the only goroutine that mutates the client set and the roster.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			metrics.ConnectionsActive.Inc()
			h.log.Info().Int("connections", len(h.clients)).Msg("client connected")
			h.sendInitState(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.ConnectionsActive.Dec()
				h.log.Info().Int("connections", len(h.clients)).Msg("client disconnected")
			}

		case in := <-h.inbound:
			h.handleFrame(in)
		}
	}
}

// sendInitState queues a snapshot of the roster to a freshly registered
// connection. The snapshot is taken inside the run loop, so it is a
// consistent view as of connection time, not a live one.
func (h *Hub) sendInitState(c *Client) {
	frame := protocol.ServerFrame{
		Type:  protocol.TypeInitState,
		Users: h.roster.Snapshot(),
	}
	payload, err := frame.Encode()
	if err != nil {
		h.log.Error().Err(err).Msg("encode INIT_STATE")
		return
	}
	c.send <- payload
}

func (h *Hub) handleFrame(in inboundFrame) {
	frame, err := protocol.DecodeClientFrame(in.payload)
	if err != nil {
		// Malformed or unknown frames are dropped; the connection and
		// all other traffic carry on.
		metrics.FramesMalformed.Inc()
		h.log.Warn().Err(err).Msg("dropping bad frame")
		return
	}

	switch frame.Type {
	case protocol.TypeRegister:
		replaced := h.roster.Upsert(*frame.Profile)
		if !replaced {
			metrics.UsersRegistered.Inc()
		}
		h.log.Info().
			Str("username", frame.Profile.Username).
			Bool("replaced", replaced).
			Msg("user registered")
		h.broadcast(&protocol.ServerFrame{
			Type:    protocol.TypeUserJoined,
			Profile: frame.Profile,
		}, in.from)

	case protocol.TypeSendMessage:
		// No validation, no storage, no targeting. Receivers see the
		// message as "them"/"sent" regardless of what the sender wrote.
		msg := *frame.Message
		msg.Sender = protocol.SenderThem
		msg.Status = protocol.StatusSent
		h.log.Debug().
			Str("from", msg.SenderID).
			Str("chat", msg.ChatID).
			Msg("relaying message")
		h.broadcast(&protocol.ServerFrame{
			Type:    protocol.TypeNewMessage,
			Message: &msg,
		}, in.from)

	case protocol.TypeReadReceipt:
		h.log.Debug().
			Str("chat", frame.ChatID).
			Str("reader", frame.ReaderID).
			Msg("relaying read receipt")
		h.broadcast(&protocol.ServerFrame{
			Type:       protocol.TypeMessageRead,
			ChatID:     frame.ChatID,
			MessageIDs: frame.MessageIDs,
			ReaderID:   frame.ReaderID,
		}, in.from)

	case protocol.TypePresence:
		// Accepted so clients with a bare identity can announce
		// themselves after a reconnect. Nothing to relay.
		h.log.Debug().Str("user", frame.UserID).Msg("presence announcement")
	}
}

// broadcast fans a frame out to every open connection except the sender.
// Sends are non-blocking: a peer whose buffer is full is assumed dead or
// stuck and gets dropped, so one slow reader cannot stall the hub.
func (h *Hub) broadcast(frame *protocol.ServerFrame, exclude *Client) {
	payload, err := frame.Encode()
	if err != nil {
		h.log.Error().Err(err).Str("type", frame.Type).Msg("encode broadcast")
		return
	}
	metrics.FramesRelayed.WithLabelValues(frame.Type).Inc()

	for client := range h.clients {
		if client == exclude {
			continue
		}
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(h.clients, client)
			metrics.ConnectionsActive.Dec()
			h.log.Warn().Msg("dropping slow client")
		}
	}
}
