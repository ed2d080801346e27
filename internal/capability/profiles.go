package capability

import (
	"context"
	"errors"

	"voicematch/backend/internal/storage"
)

// StorageProfiles serves profile lookups from the users table. Users without
// a stored profile get an anonymous placeholder rather than an error, so a
// bare identity never breaks the greeting flow.
type StorageProfiles struct {
	Storage storage.Storage
}

func (p *StorageProfiles) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := p.Storage.GetUserByID(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &Profile{DisplayName: "Anonymous"}, nil
	}
	if err != nil {
		return nil, ErrUnavailable
	}
	name := user.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return &Profile{DisplayName: name, Interests: user.Interests}, nil
}
