// Package registry is the lifecycle authority for rooms. It owns room
// metadata, enforces the monotonic forming -> active -> closing -> closed
// status progression, and emits lifecycle events consumed by the hub.
package registry

import (
	"errors"
	"sync"
	"time"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotAParticipant = errors.New("user is not a participant of this room")
)

// EventType identifies a room lifecycle event.
type EventType string

const (
	RoomActivated EventType = "room_activated"
	RoomClosing   EventType = "room_closing"
	RoomClosed    EventType = "room_closed"
)

// Close reasons carried on RoomClosing events.
const (
	ReasonParticipantLeft = "participant-left"
	ReasonConnectTimeout  = "connect-timeout"
)

// Event is a room lifecycle notification. Room is a snapshot taken at
// emission time.
type Event struct {
	Type   EventType
	Room   models.Room
	Reason string
}

type roomState struct {
	room     models.Room
	attached map[string]bool
}

// Service tracks every live room. Per-room mutation is serialized by the
// service mutex; cross-room operations never block on an external call.
type Service struct {
	storage storage.Storage

	mu     sync.RWMutex
	rooms  map[string]*roomState
	events chan Event
}

// NewService creates a registry backed by the given storage.
func NewService(s storage.Storage) *Service {
	return &Service{
		storage: s,
		rooms:   make(map[string]*roomState),
		events:  make(chan Event, 256),
	}
}

// Events returns the lifecycle event stream. A single consumer (the hub
// coordinator) is expected to drain it.
func (r *Service) Events() <-chan Event {
	return r.events
}

// CreateRoom allocates a fresh room in forming state for the two matched
// users and persists it. Room IDs are never reused.
func (r *Service) CreateRoom(userA, userB string) (*models.Room, error) {
	now := time.Now()
	room := models.Room{
		RoomID:       uuid.New().String(),
		User1ID:      userA,
		User2ID:      userB,
		ModeratorID:  "ai_moderator_" + uuid.New().String(),
		Status:       models.RoomForming,
		StartedAt:    now,
		LastActivity: now,
	}

	if err := r.storage.SaveRoom(&room); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.rooms[room.RoomID] = &roomState{
		room:     room,
		attached: make(map[string]bool),
	}
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"room_id": room.RoomID,
		"user1":   userA,
		"user2":   userB,
	}).Info("room created")

	snapshot := room
	return &snapshot, nil
}

// Attach records that a participant's transport connected. When both
// participants are attached the room transitions forming -> active.
func (r *Service) Attach(roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !st.room.HasParticipant(userID) {
		return ErrNotAParticipant
	}

	st.attached[userID] = true
	st.room.LastActivity = time.Now()

	if st.room.Status == models.RoomForming && len(st.attached) == 2 {
		st.room.Status = models.RoomActive
		r.persist(st)
		r.emit(Event{Type: RoomActivated, Room: st.room})
		log.WithField("room_id", roomID).Info("room active, both participants attached")
	}
	return nil
}

// Detach records a disconnect or explicit leave. The first detach moves the
// room to closing; repeated calls and calls for unknown rooms are no-ops.
func (r *Service) Detach(roomID, userID string) {
	r.detach(roomID, userID, ReasonParticipantLeft)
}

func (r *Service) detach(roomID, userID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(st.attached, userID)

	if st.room.Status == models.RoomForming || st.room.Status == models.RoomActive {
		st.room.Status = models.RoomClosing
		r.persist(st)
		r.emit(Event{Type: RoomClosing, Room: st.room, Reason: reason})
		log.WithFields(log.Fields{"room_id": roomID, "reason": reason}).Info("room closing")
	}
}

// FinishClose completes the close pipeline after relay teardown. The room
// transitions closing -> closed, its row is stamped, and the state is
// dropped from memory.
func (r *Service) FinishClose(roomID string) {
	r.mu.Lock()
	st, ok := r.rooms[roomID]
	if !ok || st.room.Status != models.RoomClosing {
		r.mu.Unlock()
		return
	}
	st.room.Status = models.RoomClosed
	st.room.EndedAt = time.Now()
	snapshot := st.room
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if err := r.storage.CloseRoom(roomID); err != nil {
		log.WithField("room_id", roomID).WithError(err).Error("failed to persist room close")
	}
	r.emit(Event{Type: RoomClosed, Room: snapshot})
	log.WithField("room_id", roomID).Info("room closed")
}

// Get returns a snapshot of the room, or ErrRoomNotFound.
func (r *Service) Get(roomID string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	snapshot := st.room
	return &snapshot, nil
}

// Touch refreshes a room's last-activity timestamp.
func (r *Service) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.rooms[roomID]; ok {
		st.room.LastActivity = time.Now()
	}
}

// RoomCount returns the number of rooms currently tracked.
func (r *Service) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ExpireForming moves every room that has been stuck in forming for longer
// than maxAge to closing with a connect-timeout reason. The hub surfaces the
// connection-failed signal to both clients before teardown.
func (r *Service) ExpireForming(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	r.mu.RLock()
	var expired []string
	for id, st := range r.rooms {
		if st.room.Status == models.RoomForming && st.room.StartedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		log.WithField("room_id", id).Warn("room never became active, expiring")
		r.detach(id, "", ReasonConnectTimeout)
	}
}

// RecoverRooms closes every room a previous process left open. Sessions are
// ephemeral: after a restart the signaling connections are gone, so stale
// rows are swept rather than resurrected.
func (r *Service) RecoverRooms() {
	roomIDs, err := r.storage.GetActiveRoomIDs()
	if err != nil {
		log.WithError(err).Error("failed to retrieve rooms for recovery sweep")
		return
	}
	for _, id := range roomIDs {
		if err := r.storage.CloseRoom(id); err != nil {
			log.WithField("room_id", id).WithError(err).Error("failed to close stale room")
		}
	}
	if len(roomIDs) > 0 {
		log.WithField("count", len(roomIDs)).Info("recovery sweep closed stale rooms")
	}
}

// persist is called with the service mutex held; the row write is fire and
// forget so a slow database never blocks lifecycle decisions for long.
func (r *Service) persist(st *roomState) {
	snapshot := st.room
	go func() {
		if err := r.storage.SaveRoom(&snapshot); err != nil {
			log.WithField("room_id", snapshot.RoomID).WithError(err).Error("failed to persist room")
		}
	}()
}

func (r *Service) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		log.WithFields(log.Fields{"room_id": ev.Room.RoomID, "type": ev.Type}).
			Warn("registry event channel full, dropping event")
	}
}
