package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"redgram/internal/protocol"
)

// defaultRetryInterval is how long the agent waits between reconnection
// attempts once the relay drops it.
const defaultRetryInterval = 3 * time.Second

// sendBuffer bounds outbound frames waiting on the write pump. The agent
// never blocks its caller on the network; frames past this point are
// dropped, which matches the no-queue contract for disconnected sends.
const sendBuffer = 64

// Listener receives every normalized event the agent emits. Delivery is
// synchronous: the agent calls each listener inline, in subscription
// order, before the emitting operation returns.
type Listener func(Event)

type registration struct {
	id int
	fn Listener
}

// Agent owns a single logical connection to the relay and bridges its
// wire events to local subscribers. It reconnects on its own and
// re-announces the cached profile, so callers never see transport
// errors, only STATUS events.
type Agent struct {
	url        string
	retryEvery time.Duration
	log        zerolog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	send       chan []byte
	connecting bool
	retry      *time.Timer
	closed     bool

	userID  string
	profile *protocol.Profile

	listeners    []registration
	nextListener int
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger. Silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithRetryInterval overrides the reconnect interval.
func WithRetryInterval(d time.Duration) Option {
	return func(a *Agent) { a.retryEvery = d }
}

// New creates an agent and immediately starts connecting to the relay at
// url (a ws:// address). New never blocks on the network; if the relay is
// unreachable the agent keeps retrying in the background.
func New(url string, opts ...Option) *Agent {
	a := &Agent{
		url:        url,
		retryEvery: defaultRetryInterval,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.connect()
	return a
}

// connect kicks off a single dial attempt unless one is already running,
// a connection is open, or the agent is closed.
func (a *Agent) connect() {
	a.mu.Lock()
	if a.closed || a.connecting || a.conn != nil {
		a.mu.Unlock()
		return
	}
	a.connecting = true
	a.mu.Unlock()

	go a.dial()
}

func (a *Agent) dial() {
	conn, _, err := websocket.DefaultDialer.Dial(a.url, nil)

	a.mu.Lock()
	a.connecting = false
	if a.closed {
		a.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		a.mu.Unlock()
		a.log.Debug().Err(err).Msg("relay unreachable, will retry")
		a.scheduleRetry()
		return
	}

	a.conn = conn
	a.stopRetryLocked()
	send := make(chan []byte, sendBuffer)
	a.send = send
	profile := a.profile
	userID := a.userID
	a.mu.Unlock()

	a.log.Info().Str("url", a.url).Msg("connected to relay")

	go a.writePump(conn, send)
	go a.readPump(conn)

	a.notify(Event{Type: EventStatus, Status: StatusConnected})

	// The relay holds no durable record of who we are across reconnects,
	// so re-announce: the full profile when we have one, otherwise just
	// the bare identity.
	if profile != nil {
		a.transmit(&protocol.ClientFrame{Type: protocol.TypeRegister, Profile: profile})
	} else if userID != "" {
		a.transmit(&protocol.ClientFrame{Type: protocol.TypePresence, UserID: userID})
	}
}

// scheduleRetry arms the reconnect timer. At most one timer is ever
// pending; re-entrant attempts are suppressed.
func (a *Agent) scheduleRetry() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.retry != nil || a.conn != nil {
		return
	}
	a.retry = time.AfterFunc(a.retryEvery, func() {
		a.mu.Lock()
		a.retry = nil
		a.mu.Unlock()
		a.connect()
	})
}

func (a *Agent) stopRetryLocked() {
	if a.retry != nil {
		a.retry.Stop()
		a.retry = nil
	}
}

func (a *Agent) readPump(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		a.handleFrame(payload)
	}
	conn.Close()

	a.mu.Lock()
	lost := false
	if a.conn == conn {
		a.conn = nil
		close(a.send)
		a.send = nil
		lost = !a.closed
	}
	a.mu.Unlock()

	if lost {
		a.log.Info().Dur("retry_in", a.retryEvery).Msg("disconnected from relay")
		a.notify(Event{Type: EventStatus, Status: StatusDisconnected})
		a.scheduleRetry()
	}
}

func (a *Agent) writePump(conn *websocket.Conn, send <-chan []byte) {
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			return
		}
	}
}

// transmit queues a frame for the relay iff the transport is open.
// Otherwise the frame is silently dropped; there is no resend queue.
func (a *Agent) transmit(frame *protocol.ClientFrame) {
	payload, err := frame.Encode()
	if err != nil {
		a.log.Error().Err(err).Str("type", frame.Type).Msg("encode frame")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.send == nil {
		return
	}
	select {
	case a.send <- payload:
	default:
		a.log.Warn().Str("type", frame.Type).Msg("outbound buffer full, dropping frame")
	}
}

// handleFrame normalizes one wire event into a local event. Malformed
// frames are logged and dropped; they never reach listeners.
func (a *Agent) handleFrame(payload []byte) {
	frame, err := protocol.DecodeServerFrame(payload)
	if err != nil {
		a.log.Warn().Err(err).Msg("dropping bad frame from relay")
		return
	}

	switch frame.Type {
	case protocol.TypeInitState:
		a.notify(Event{Type: EventUserSync, Users: frame.Users})

	case protocol.TypeUserJoined:
		a.mu.Lock()
		self := a.userID
		a.mu.Unlock()
		if frame.Profile.ID == self {
			// Our own registration echoed back through the relay.
			return
		}
		a.notify(Event{Type: EventUserJoined, Profile: frame.Profile})

	case protocol.TypeNewMessage:
		a.notify(Event{Type: EventNewMessage, Message: frame.Message})

	case protocol.TypeMessageRead:
		a.notify(Event{
			Type:       EventMessageRead,
			ChatID:     frame.ChatID,
			MessageIDs: frame.MessageIDs,
			ReaderID:   frame.ReaderID,
		})
	}
}

// SetUserID sets the bare local identity before a full profile exists.
func (a *Agent) SetUserID(id string) {
	a.mu.Lock()
	a.userID = id
	a.mu.Unlock()
}

// Register caches the profile as the local identity and announces it to
// the relay if the transport is open. Registration while disconnected is
// cached only: the most recent profile is re-sent automatically on the
// next successful connect.
func (a *Agent) Register(p protocol.Profile) {
	a.mu.Lock()
	a.userID = p.ID
	cached := p
	a.profile = &cached
	a.mu.Unlock()

	a.transmit(&protocol.ClientFrame{Type: protocol.TypeRegister, Profile: &cached})
}

// AnnouncePresence tells the relay the bare identity is here. Used when
// no full profile has been registered yet.
func (a *Agent) AnnouncePresence() {
	a.mu.Lock()
	userID := a.userID
	a.mu.Unlock()
	if userID == "" {
		return
	}
	a.transmit(&protocol.ClientFrame{Type: protocol.TypePresence, UserID: userID})
}

// SendMessage builds a message for chatID and delivers it to local
// subscribers immediately: the UI must never wait on the network to see
// its own text. Independently, if the transport is open, the message goes
// to the relay with ChatID rewritten to recipientID for direct messages
// so receivers can filter by it. Group messages keep chatID as-is.
func (a *Agent) SendMessage(chatID, text, recipientID string, isGroup bool) {
	a.mu.Lock()
	senderID := a.userID
	a.mu.Unlock()
	if senderID == "" {
		senderID = protocol.SenderMe
	}

	msg := protocol.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Text:      text,
		Sender:    protocol.SenderMe,
		SenderID:  senderID,
		Timestamp: time.Now().UnixMilli(),
		Status:    protocol.StatusSent,
	}

	// Optimistic echo, before any network I/O.
	a.notify(Event{Type: EventNewMessage, Message: &msg})

	wire := msg
	if !isGroup && recipientID != "" {
		wire.ChatID = recipientID
	}
	a.transmit(&protocol.ClientFrame{
		Type:    protocol.TypeSendMessage,
		Message: &wire,
		IsGroup: isGroup,
	})
}

// SendReadReceipt notifies peers that messages in chatID were read. There
// is no local echo and no queue: receipts sent while disconnected are
// dropped for good.
func (a *Agent) SendReadReceipt(chatID string, messageIDs []string) {
	a.mu.Lock()
	readerID := a.userID
	a.mu.Unlock()

	a.transmit(&protocol.ClientFrame{
		Type:       protocol.TypeReadReceipt,
		ChatID:     chatID,
		MessageIDs: messageIDs,
		ReaderID:   readerID,
	})
}

// Subscribe registers a listener for every normalized event and returns
// its cancel function.
func (a *Agent) Subscribe(fn Listener) (cancel func()) {
	a.mu.Lock()
	id := a.nextListener
	a.nextListener++
	a.listeners = append(a.listeners, registration{id: id, fn: fn})
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, reg := range a.listeners {
			if reg.id == id {
				a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify delivers an event to every listener in subscription order. The
// lock is not held during delivery so listeners may call back into the
// agent.
func (a *Agent) notify(e Event) {
	a.mu.Lock()
	regs := make([]registration, len(a.listeners))
	copy(regs, a.listeners)
	a.mu.Unlock()

	for _, reg := range regs {
		reg.fn(e)
	}
}

// Close shuts the agent down: the transport is closed and any pending
// reconnect timer is cancelled. Safe to call more than once.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.stopRetryLocked()
	conn := a.conn
	a.conn = nil
	if a.send != nil {
		close(a.send)
		a.send = nil
	}
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
