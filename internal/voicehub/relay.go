package voicehub

import (
	"errors"
	"sync"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/registry"

	log "github.com/sirupsen/logrus"
)

// ErrRoomNotFound mirrors the registry sentinel so relay callers can check a
// single error regardless of which layer rejected them.
var ErrRoomNotFound = registry.ErrRoomNotFound

// ErrRoomFull is returned when a room already holds its two human subscribers.
var ErrRoomFull = errors.New("room already has two subscribers")

// Relay routes signaling messages between the subscribers of a room. The
// negotiation payload stays opaque: routing decisions use only the room ID
// and the sender ID, so the negotiation protocol can evolve independently.
//
// Ordering: each message is forwarded from the sender's own goroutine into
// per-subscriber buffered channels, so a single sender's messages arrive in
// send order. Nothing is ordered across senders.
type Relay struct {
	Registry *registry.Service

	mu    sync.RWMutex
	rooms map[string]map[string]Client // roomID -> userID -> subscriber
}

// NewRelay creates a relay bound to the room registry.
func NewRelay(reg *registry.Service) *Relay {
	return &Relay{
		Registry: reg,
		rooms:    make(map[string]map[string]Client),
	}
}

// Subscribe attaches a client to its room channel. It fails with
// ErrRoomNotFound when the registry has no such room, ErrNotAParticipant
// when the user does not belong to it, and ErrRoomFull when two subscribers
// already hold the room. On success the other subscribers receive
// user-joined and the new subscriber receives room-info. A re-subscribe by
// an existing member replaces and closes the previous connection without a
// second user-joined.
func (r *Relay) Subscribe(roomID string, c Client) error {
	room, err := r.Registry.Get(roomID)
	if err != nil {
		return err
	}
	userID := c.GetUserID()

	r.mu.Lock()
	subs, ok := r.rooms[roomID]
	if !ok {
		subs = make(map[string]Client)
		r.rooms[roomID] = subs
	}
	prev, already := subs[userID]
	if !already && len(subs) >= 2 {
		r.mu.Unlock()
		return ErrRoomFull
	}
	if !room.HasParticipant(userID) {
		r.mu.Unlock()
		return registry.ErrNotAParticipant
	}
	subs[userID] = c
	var others []Client
	if !already {
		others = othersOf(subs, userID)
	}
	users := make([]string, 0, len(subs))
	for id := range subs {
		users = append(users, id)
	}
	r.mu.Unlock()

	if already && prev != c {
		prev.Close()
	}
	for _, other := range others {
		deliver(other, models.SignalMessage{
			Type:     models.SignalUserJoined,
			RoomID:   roomID,
			SenderID: userID,
		})
	}
	deliver(c, models.SignalMessage{
		Type:   models.SignalRoomInfo,
		RoomID: roomID,
		Users:  users,
	})

	if err := r.Registry.Attach(roomID, userID); err != nil {
		log.WithFields(log.Fields{"room_id": roomID, "user_id": userID}).
			WithError(err).Warn("attach after subscribe failed")
	}
	return nil
}

// Publish forwards a message to every other subscriber of the room, never
// back to the sender. Messages from users outside the subscriber set are
// dropped: nothing may cross into a room it does not belong to.
func (r *Relay) Publish(roomID, senderID string, msg models.SignalMessage) {
	r.mu.RLock()
	subs, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	if _, member := subs[senderID]; !member {
		r.mu.RUnlock()
		log.WithFields(log.Fields{"room_id": roomID, "sender_id": senderID}).
			Warn("dropping publish from non-subscriber")
		return
	}
	others := othersOf(subs, senderID)
	r.mu.RUnlock()

	msg.RoomID = roomID
	msg.SenderID = senderID
	for _, c := range others {
		deliver(c, msg)
	}
	r.Registry.Touch(roomID)
}

// PublishModerator delivers a moderator-originated message to every
// subscriber of the room, both participants included.
func (r *Relay) PublishModerator(roomID string, msg models.SignalMessage) {
	r.mu.RLock()
	subs, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	all := make([]Client, 0, len(subs))
	for _, c := range subs {
		all = append(all, c)
	}
	r.mu.RUnlock()

	msg.RoomID = roomID
	for _, c := range all {
		deliver(c, msg)
	}
	r.Registry.Touch(roomID)
}

// Unsubscribe removes a client from its room channel, notifies the
// remaining subscribers with user-left, and tells the registry to detach.
// Idempotent: unknown rooms and absent subscribers are no-ops.
func (r *Relay) Unsubscribe(roomID, userID string) {
	r.mu.Lock()
	subs, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, member := subs[userID]; !member {
		r.mu.Unlock()
		return
	}
	delete(subs, userID)
	others := othersOf(subs, userID)
	if len(subs) == 0 {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()

	for _, other := range others {
		deliver(other, models.SignalMessage{
			Type:     models.SignalUserLeft,
			RoomID:   roomID,
			SenderID: userID,
		})
	}
	r.Registry.Detach(roomID, userID)
}

// CloseRoom tears the room channel down: an optional final notice is
// delivered to the remaining subscribers, then each is closed and removed.
func (r *Relay) CloseRoom(roomID string, notice *models.SignalMessage) {
	r.mu.Lock()
	subs, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	remaining := make([]Client, 0, len(subs))
	for _, c := range subs {
		remaining = append(remaining, c)
	}
	delete(r.rooms, roomID)
	r.mu.Unlock()

	for _, c := range remaining {
		if notice != nil {
			msg := *notice
			msg.RoomID = roomID
			deliver(c, msg)
		}
		c.SetRoomID("")
		c.Close()
	}
}

// SubscriberCount returns the total number of subscribers across all rooms.
func (r *Relay) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, subs := range r.rooms {
		n += len(subs)
	}
	return n
}

func othersOf(subs map[string]Client, except string) []Client {
	others := make([]Client, 0, len(subs))
	for id, c := range subs {
		if id != except {
			others = append(others, c)
		}
	}
	return others
}

// deliver pushes a message into a subscriber's send channel without ever
// blocking the relay: a subscriber that cannot keep up loses messages
// rather than wedging the room.
func deliver(c Client, msg models.SignalMessage) {
	select {
	case c.GetSendChannel() <- msg:
	default:
		log.WithFields(log.Fields{"user_id": c.GetUserID(), "type": msg.Type}).
			Warn("subscriber send buffer full, dropping message")
	}
}
