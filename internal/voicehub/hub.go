package voicehub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/registry"

	log "github.com/sirupsen/logrus"
)

// Moderator is the slice of the moderation orchestrator the hub drives.
type Moderator interface {
	// StartRoom spins up conversation state for a room that just became
	// active.
	StartRoom(room *models.Room)
	// SubmitUtterance feeds a transcribed participant utterance into the
	// room's conversation. Unknown or closed rooms are ignored.
	SubmitUtterance(roomID, userID, transcript string)
	// SubmitAudio feeds raw captured audio, to be transcribed first.
	SubmitAudio(roomID, userID string, audio []byte)
	// Evict discards all conversation state for a closed room.
	Evict(roomID string)
}

// Hub owns the set of connected clients, routes inbound envelopes to the
// relay and the moderator, and consumes registry lifecycle events so that
// room teardown happens in one place, in order.
type Hub struct {
	Registry  *registry.Service
	Relay     *Relay
	Moderator Moderator

	// ConnectTimeout bounds how long a room may sit in forming before both
	// clients get a connection-failed signal.
	ConnectTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]Client
}

// NewHub wires the coordinator onto the registry and relay. The moderator is
// attached separately to keep construction order simple in main.
func NewHub(reg *registry.Service, relay *Relay, connectTimeout time.Duration) *Hub {
	return &Hub{
		Registry:       reg,
		Relay:          relay,
		ConnectTimeout: connectTimeout,
		clients:        make(map[string]Client),
	}
}

// SetModerator attaches the moderation orchestrator.
func (h *Hub) SetModerator(m Moderator) {
	h.Moderator = m
}

// Register tracks a freshly connected client. A second connection for the
// same user replaces the first, which is closed.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	prev, ok := h.clients[c.GetUserID()]
	h.clients[c.GetUserID()] = c
	h.mu.Unlock()

	if ok && prev != c {
		prev.Close()
	}
	log.WithField("user_id", c.GetUserID()).Info("client connected")
}

// Unregister drops a client after its connection ended and unsubscribes it
// from whatever room it held.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.GetUserID()]; ok && current == c {
		delete(h.clients, c.GetUserID())
	}
	h.mu.Unlock()

	if roomID := c.GetRoomID(); roomID != "" {
		h.Relay.Unsubscribe(roomID, c.GetUserID())
	}
	c.Close()
	log.WithField("user_id", c.GetUserID()).Info("client disconnected")
}

// HandleMessage routes one inbound envelope from a client's read pump.
func (h *Hub) HandleMessage(c Client, msg models.SignalMessage) {
	switch msg.Type {
	case models.SignalJoinRoom:
		if err := h.Relay.Subscribe(msg.RoomID, c); err != nil {
			deliver(c, models.SignalMessage{
				Type:    models.SignalError,
				RoomID:  msg.RoomID,
				Payload: errorPayload(err),
			})
			return
		}
		c.SetRoomID(msg.RoomID)

	case models.SignalOffer, models.SignalAnswer, models.SignalICECandidate, models.SignalMicToggle:
		h.Relay.Publish(msg.RoomID, c.GetUserID(), msg)

	case models.SignalAudioUtterance:
		if h.Moderator == nil {
			return
		}
		if msg.Transcript == "" && msg.Audio != "" {
			if audio, err := base64.StdEncoding.DecodeString(msg.Audio); err == nil {
				h.Moderator.SubmitAudio(msg.RoomID, c.GetUserID(), audio)
				return
			}
		}
		h.Moderator.SubmitUtterance(msg.RoomID, c.GetUserID(), msg.Transcript)

	case models.SignalLeaveRoom:
		h.Relay.Unsubscribe(msg.RoomID, c.GetUserID())
		c.SetRoomID("")

	default:
		log.WithFields(log.Fields{"user_id": c.GetUserID(), "type": msg.Type}).
			Warn("dropping envelope of unknown type")
	}
}

// Run consumes registry lifecycle events and periodically expires rooms
// stuck in forming. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	interval := h.ConnectTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	sweep := time.NewTicker(interval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-h.Registry.Events():
			h.handleEvent(ev)

		case <-sweep.C:
			h.Registry.ExpireForming(h.ConnectTimeout)
		}
	}
}

func (h *Hub) handleEvent(ev registry.Event) {
	switch ev.Type {
	case registry.RoomActivated:
		if h.Moderator != nil {
			room := ev.Room
			h.Moderator.StartRoom(&room)
		}

	case registry.RoomClosing:
		var notice *models.SignalMessage
		if ev.Reason == registry.ReasonConnectTimeout {
			notice = &models.SignalMessage{Type: models.SignalConnectionFailed}
		}
		h.Relay.CloseRoom(ev.Room.RoomID, notice)
		h.Registry.FinishClose(ev.Room.RoomID)

	case registry.RoomClosed:
		if h.Moderator != nil {
			h.Moderator.Evict(ev.Room.RoomID)
		}
	}
}

// ConnectedClients returns the number of clients currently registered.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func errorPayload(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return b
}
