package voicehub_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/registry"
	"voicematch/backend/internal/voicehub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*voicehub.Hub, *registry.Service, *models.Room, *mockModerator) {
	t.Helper()
	reg := registry.NewService(newLenientStorage())
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	hub := voicehub.NewHub(reg, voicehub.NewRelay(reg), time.Minute)
	moderator := &mockModerator{}
	hub.SetModerator(moderator)
	return hub, reg, room, moderator
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	hub, _, _, _ := newTestHub(t)
	first := newMockClient("user_a")
	second := newMockClient("user_a")

	hub.Register(first)
	hub.Register(second)

	assert.True(t, first.isClosed(), "the stale connection must be closed")
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, hub.ConnectedClients())
}

func TestHandleMessageJoinRoom(t *testing.T) {
	hub, _, room, _ := newTestHub(t)
	client := newMockClient("user_a")
	hub.Register(client)

	hub.HandleMessage(client, models.SignalMessage{
		Type:   models.SignalJoinRoom,
		RoomID: room.RoomID,
	})

	assert.Equal(t, room.RoomID, client.GetRoomID())
	assert.Contains(t, client.drainTypes(), models.SignalRoomInfo)
}

func TestHandleMessageJoinUnknownRoom(t *testing.T) {
	hub, _, _, _ := newTestHub(t)
	client := newMockClient("user_a")
	hub.Register(client)

	hub.HandleMessage(client, models.SignalMessage{
		Type:   models.SignalJoinRoom,
		RoomID: "no-such-room",
	})

	assert.Empty(t, client.GetRoomID())
	messages := client.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, models.SignalError, messages[0].Type)
	assert.Contains(t, string(messages[0].Payload), "room")
}

func TestHandleMessageForwardsNegotiation(t *testing.T) {
	hub, _, room, _ := newTestHub(t)
	clientA := newMockClient("user_a")
	clientB := newMockClient("user_b")
	hub.Register(clientA)
	hub.Register(clientB)
	hub.HandleMessage(clientA, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})
	hub.HandleMessage(clientB, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})
	clientA.drain()
	clientB.drain()

	hub.HandleMessage(clientA, models.SignalMessage{
		Type:   models.SignalOffer,
		RoomID: room.RoomID,
	})

	assert.Equal(t, []string{models.SignalOffer}, clientB.drainTypes())
	assert.Empty(t, clientA.drain())
}

func TestHandleMessageAudioUtterance(t *testing.T) {
	hub, _, room, moderator := newTestHub(t)
	client := newMockClient("user_a")
	hub.Register(client)

	hub.HandleMessage(client, models.SignalMessage{
		Type:       models.SignalAudioUtterance,
		RoomID:     room.RoomID,
		Transcript: "hello",
	})
	assert.Equal(t, []string{room.RoomID + "/user_a/hello"}, moderator.seenUtterances())

	hub.HandleMessage(client, models.SignalMessage{
		Type:   models.SignalAudioUtterance,
		RoomID: room.RoomID,
		Audio:  base64.StdEncoding.EncodeToString([]byte("pcm-bytes")),
	})
	assert.Contains(t, moderator.seenUtterances(), room.RoomID+"/user_a/<audio>")
}

func TestHandleMessageLeaveRoom(t *testing.T) {
	hub, reg, room, _ := newTestHub(t)
	client := newMockClient("user_a")
	hub.Register(client)
	hub.HandleMessage(client, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})

	hub.HandleMessage(client, models.SignalMessage{Type: models.SignalLeaveRoom, RoomID: room.RoomID})

	assert.Empty(t, client.GetRoomID())
	got, err := reg.Get(room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomClosing, got.Status)
}

// TestDisconnectTearsDownRoom exercises the full pipeline: one participant
// drops, the partner is notified and closed, the registry forgets the room
// and the moderator is evicted.
func TestDisconnectTearsDownRoom(t *testing.T) {
	hub, reg, room, moderator := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	clientA := newMockClient("user_a")
	clientB := newMockClient("user_b")
	hub.Register(clientA)
	hub.Register(clientB)
	hub.HandleMessage(clientA, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})
	hub.HandleMessage(clientB, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})

	assert.Eventually(t, func() bool {
		started := moderator.startedRooms()
		return len(started) == 1 && started[0] == room.RoomID
	}, 2*time.Second, 10*time.Millisecond, "activation must reach the moderator")

	hub.Unregister(clientA)

	assert.Eventually(t, func() bool {
		evicted := moderator.evictedRooms()
		return len(evicted) == 1 && evicted[0] == room.RoomID
	}, 2*time.Second, 10*time.Millisecond, "eviction must follow teardown")

	assert.True(t, clientB.isClosed())
	assert.Contains(t, clientB.drainTypes(), models.SignalUserLeft)

	_, err := reg.Get(room.RoomID)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
	assert.Equal(t, 0, hub.Relay.SubscriberCount())
}

func TestRunToleratesZeroConnectTimeout(t *testing.T) {
	reg := registry.NewService(newLenientStorage())
	hub := voicehub.NewHub(reg, voicehub.NewRelay(reg), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// TestConnectTimeoutSignalsFailure drives the forming-room expiry sweep and
// checks that the lone subscriber hears connection-failed before the close.
func TestConnectTimeoutSignalsFailure(t *testing.T) {
	reg := registry.NewService(newLenientStorage())
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	hub := voicehub.NewHub(reg, voicehub.NewRelay(reg), 20*time.Millisecond)
	moderator := &mockModerator{}
	hub.SetModerator(moderator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newMockClient("user_a")
	hub.Register(client)
	hub.HandleMessage(client, models.SignalMessage{Type: models.SignalJoinRoom, RoomID: room.RoomID})

	assert.Eventually(t, func() bool {
		return client.isClosed()
	}, 2*time.Second, 10*time.Millisecond, "the stuck room must be swept")

	assert.Contains(t, client.drainTypes(), models.SignalConnectionFailed)
	_, err = reg.Get(room.RoomID)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
}
