package registry_test

import (
	"testing"
	"time"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a testify double for the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveRoom(room *models.Room) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) CloseRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(roomID string) (*models.Room, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStorage) GetActiveRoomIDs() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) AddUserToSearchQueue(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) RemoveUserFromSearchQueue(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) GetSearchingUsers() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newTestRegistry(t *testing.T) (*registry.Service, *MockStorage) {
	t.Helper()
	ms := new(MockStorage)
	ms.On("SaveRoom", mock.AnythingOfType("*models.Room")).Return(nil).Maybe()
	ms.On("CloseRoom", mock.AnythingOfType("string")).Return(nil).Maybe()
	return registry.NewService(ms), ms
}

func nextEvent(t *testing.T, reg *registry.Service) registry.Event {
	t.Helper()
	select {
	case ev := <-reg.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for registry event")
		return registry.Event{}
	}
}

func TestCreateRoomStartsForming(t *testing.T) {
	reg, _ := newTestRegistry(t)

	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	assert.NotEmpty(t, room.RoomID)
	assert.Equal(t, models.RoomForming, room.Status)
	assert.Equal(t, "user_a", room.User1ID)
	assert.Equal(t, "user_b", room.User2ID)
	assert.Contains(t, room.ModeratorID, "ai_moderator_")

	other, err := reg.CreateRoom("user_c", "user_d")
	require.NoError(t, err)
	assert.NotEqual(t, room.RoomID, other.RoomID, "room identifiers must be unique")
}

func TestAttachBothParticipantsActivates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	require.NoError(t, reg.Attach(room.RoomID, "user_a"))
	got, err := reg.Get(room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomForming, got.Status, "one attachment is not enough")

	require.NoError(t, reg.Attach(room.RoomID, "user_b"))
	got, err = reg.Get(room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomActive, got.Status)

	ev := nextEvent(t, reg)
	assert.Equal(t, registry.RoomActivated, ev.Type)
	assert.Equal(t, room.RoomID, ev.Room.RoomID)
}

func TestAttachErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	assert.ErrorIs(t, reg.Attach("missing-room", "user_a"), registry.ErrRoomNotFound)
	assert.ErrorIs(t, reg.Attach(room.RoomID, "stranger"), registry.ErrNotAParticipant)
}

func TestDetachRunsClosePipeline(t *testing.T) {
	reg, ms := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)
	require.NoError(t, reg.Attach(room.RoomID, "user_a"))
	require.NoError(t, reg.Attach(room.RoomID, "user_b"))
	nextEvent(t, reg) // RoomActivated

	reg.Detach(room.RoomID, "user_a")
	ev := nextEvent(t, reg)
	assert.Equal(t, registry.RoomClosing, ev.Type)
	assert.Equal(t, registry.ReasonParticipantLeft, ev.Reason)

	// a second detach must not re-run the transition
	reg.Detach(room.RoomID, "user_b")

	reg.FinishClose(room.RoomID)
	ev = nextEvent(t, reg)
	assert.Equal(t, registry.RoomClosed, ev.Type)

	_, err = reg.Get(room.RoomID)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
	ms.AssertCalled(t, "CloseRoom", room.RoomID)

	select {
	case ev := <-reg.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFinishCloseRequiresClosing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	// forming -> closed would skip a state; must be a no-op
	reg.FinishClose(room.RoomID)

	got, err := reg.Get(room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomForming, got.Status)
}

func TestExpireForming(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)

	reg.ExpireForming(0)

	ev := nextEvent(t, reg)
	assert.Equal(t, registry.RoomClosing, ev.Type)
	assert.Equal(t, registry.ReasonConnectTimeout, ev.Reason)
	assert.Equal(t, room.RoomID, ev.Room.RoomID)
}

func TestExpireFormingSkipsActiveRooms(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, err := reg.CreateRoom("user_a", "user_b")
	require.NoError(t, err)
	require.NoError(t, reg.Attach(room.RoomID, "user_a"))
	require.NoError(t, reg.Attach(room.RoomID, "user_b"))
	nextEvent(t, reg) // RoomActivated

	reg.ExpireForming(0)

	got, err := reg.Get(room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomActive, got.Status)
}

func TestRecoverRoomsClosesStaleRows(t *testing.T) {
	ms := new(MockStorage)
	ms.On("GetActiveRoomIDs").Return([]string{"room-1", "room-2"}, nil).Once()
	ms.On("CloseRoom", "room-1").Return(nil).Once()
	ms.On("CloseRoom", "room-2").Return(nil).Once()

	reg := registry.NewService(ms)
	reg.RecoverRooms()

	ms.AssertExpectations(t)
}
