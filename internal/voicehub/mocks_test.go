package voicehub_test

import (
	"errors"
	"sync"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/voicehub"

	"github.com/stretchr/testify/mock"
)

var errStorageDown = errors.New("storage down")

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

// newLenientStorage returns a MockStorage that tolerates the best-effort
// persistence calls tests do not care about.
func newLenientStorage() *MockStorage {
	ms := new(MockStorage)
	ms.On("SaveRoom", mock.AnythingOfType("*models.Room")).Return(nil).Maybe()
	ms.On("CloseRoom", mock.AnythingOfType("string")).Return(nil).Maybe()
	ms.On("AddUserToSearchQueue", mock.AnythingOfType("string")).Return(nil).Maybe()
	ms.On("RemoveUserFromSearchQueue", mock.AnythingOfType("string")).Return(nil).Maybe()
	return ms
}

// mockClient is an in-memory double for the Client interface.
type mockClient struct {
	userID string

	mu     sync.Mutex
	roomID string
	closed bool

	send chan models.SignalMessage
}

func newMockClient(id string) *mockClient {
	return &mockClient{
		userID: id,
		send:   make(chan models.SignalMessage, 32), // buffered so tests never block
	}
}

func (c *mockClient) GetUserID() string { return c.userID }

func (c *mockClient) GetRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *mockClient) SetRoomID(id string) {
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
}

func (c *mockClient) GetSendChannel() chan<- models.SignalMessage { return c.send }

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain empties the send channel and returns everything that was delivered.
func (c *mockClient) drain() []models.SignalMessage {
	var messages []models.SignalMessage
	for {
		select {
		case msg := <-c.send:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

// drainTypes returns only the message types, in delivery order.
func (c *mockClient) drainTypes() []string {
	var types []string
	for _, msg := range c.drain() {
		types = append(types, msg.Type)
	}
	return types
}

// mockModerator records the calls the hub makes into the orchestrator.
type mockModerator struct {
	mu         sync.Mutex
	started    []string
	utterances []string
	evicted    []string
}

func (m *mockModerator) StartRoom(room *models.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, room.RoomID)
}

func (m *mockModerator) SubmitUtterance(roomID, userID, transcript string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances = append(m.utterances, roomID+"/"+userID+"/"+transcript)
}

func (m *mockModerator) SubmitAudio(roomID, userID string, audio []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances = append(m.utterances, roomID+"/"+userID+"/<audio>")
}

func (m *mockModerator) Evict(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted = append(m.evicted, roomID)
}

func (m *mockModerator) startedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

func (m *mockModerator) evictedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.evicted...)
}

func (m *mockModerator) seenUtterances() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.utterances...)
}

// recordingCreator is a thread-safe RoomCreator that remembers every pairing
// it was asked to create.
type recordingCreator struct {
	mu    sync.Mutex
	pairs [][2]string
	fail  int // fail the next N calls
}

func (r *recordingCreator) CreateRoom(userA, userB string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return nil, errStorageDown
	}
	r.pairs = append(r.pairs, [2]string{userA, userB})
	return &models.Room{
		RoomID:  "room-" + userA + "-" + userB,
		User1ID: userA,
		User2ID: userB,
		Status:  models.RoomForming,
	}, nil
}

func (r *recordingCreator) createdPairs() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.pairs...)
}

var _ voicehub.RoomCreator = (*recordingCreator)(nil)
var _ voicehub.Client = (*mockClient)(nil)
var _ voicehub.Moderator = (*mockModerator)(nil)
