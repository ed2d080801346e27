package storage

import (
	"context"
	"errors"

	"voicematch/backend/internal/models"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the persistence boundary used by the registry, the matcher and
// the profile lookup. Room rows live in PostgreSQL; the waiting-queue mirror
// and the active-room set live in Redis.
type Storage interface {
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)

	SaveRoom(room *models.Room) error
	CloseRoom(roomID string) error
	GetRoomByID(roomID string) (*models.Room, error)
	GetActiveRoomIDs() ([]string, error)

	AddUserToSearchQueue(userID string) error
	RemoveUserFromSearchQueue(userID string) error
	GetSearchingUsers() ([]string, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUser upserts a user profile in PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetUserByID loads a user profile by its anonymous ID.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.WithField("user_id", id).WithError(err).Error("failed to load user")
		return nil, err
	}
	return &user, nil
}

// SaveRoom upserts a room row in PostgreSQL and keeps the Redis active-room
// set in sync with its status.
func (s *Service) SaveRoom(room *models.Room) error {
	if err := s.DB.Save(room).Error; err != nil {
		return err
	}
	if s.Redis != nil {
		if room.Status == models.RoomClosed {
			s.Redis.SRem(s.Ctx, "active_rooms", room.RoomID)
		} else {
			s.Redis.SAdd(s.Ctx, "active_rooms", room.RoomID)
		}
	}
	return nil
}

// CloseRoom marks a room row closed and stamps ended_at.
func (s *Service) CloseRoom(roomID string) error {
	err := s.DB.Model(&models.Room{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"status":   models.RoomClosed,
			"ended_at": gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return err
	}
	if s.Redis != nil {
		s.Redis.SRem(s.Ctx, "active_rooms", roomID)
	}
	return nil
}

// GetRoomByID loads a room row by its identifier.
func (s *Service) GetRoomByID(roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.WithField("room_id", roomID).WithError(err).Error("failed to load room")
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomIDs returns the IDs of every room that has not reached closed.
func (s *Service) GetActiveRoomIDs() ([]string, error) {
	var roomIDs []string
	if err := s.DB.Model(&models.Room{}).
		Where("status <> ?", models.RoomClosed).
		Pluck("room_id", &roomIDs).Error; err != nil {
		log.WithError(err).Error("failed to retrieve active room IDs")
		return nil, err
	}
	return roomIDs, nil
}

// AddUserToSearchQueue mirrors a waiting entry into Redis.
func (s *Service) AddUserToSearchQueue(userID string) error {
	return s.Redis.SAdd(s.Ctx, "search_queue", userID).Err()
}

// RemoveUserFromSearchQueue removes a waiting entry from the Redis mirror.
func (s *Service) RemoveUserFromSearchQueue(userID string) error {
	return s.Redis.SRem(s.Ctx, "search_queue", userID).Err()
}

// GetSearchingUsers returns every user currently mirrored as searching.
func (s *Service) GetSearchingUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, "search_queue").Result()
}
