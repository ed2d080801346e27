package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // needed for pq.StringArray
	"gorm.io/gorm"
)

// User is the profile record behind an anonymous identity. Only the fields
// the moderator needs for greetings and context are stored here; nothing in
// it links back to a real-world identity.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"` // anonymous UUID
	DisplayName string         `json:"display_name"`
	Language    string         `json:"language"`
	Interests   pq.StringArray `gorm:"type:text[]" json:"interests"`
	Region      string         `json:"region,omitempty"`
}

// BeforeCreate is a GORM hook that runs before a record is inserted.
// It generates a fresh UUID for the user when no ID was set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
