package voicehub

import (
	"errors"
	"sort"
	"sync"
	"time"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/storage"

	log "github.com/sirupsen/logrus"
)

// ErrAlreadyQueued is returned when a user who already holds a live waiting
// entry tries to join the queue again.
var ErrAlreadyQueued = errors.New("user already has a waiting entry")

// Match statuses returned by JoinQueue.
const (
	StatusQueued  = "queued"
	StatusMatched = "matched"
)

// MatchResult is the outcome of a join-queue call: either the caller was
// parked in the queue, or a room was created with a partner.
type MatchResult struct {
	Status    string `json:"status"`
	RoomID    string `json:"room_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
}

// RoomCreator is the slice of the registry the matcher needs.
type RoomCreator interface {
	CreateRoom(userA, userB string) (*models.Room, error)
}

type waitingEntry struct {
	models.WaitingEntry
	// claimed marks an entry a concurrent matcher has taken out of play
	// while its room is being created. Claimed entries are invisible to
	// every scan until the claim is released or the entry is consumed.
	claimed bool
	// removed marks a claimed entry whose user left mid-match; the release
	// path deletes it instead of reviving it.
	removed bool
}

// Matcher turns independent join requests into exclusive pairings. All queue
// mutation happens under one mutex; the only work done outside it is room
// creation, during which both winners stay claimed so no concurrent scan can
// double-book either of them.
type Matcher struct {
	rooms   RoomCreator
	storage storage.Storage

	mu      sync.Mutex
	entries map[string]*waitingEntry
}

// NewMatcher creates a matcher that creates rooms through the given
// RoomCreator and mirrors the queue into storage best-effort.
func NewMatcher(rooms RoomCreator, s storage.Storage) *Matcher {
	return &Matcher{
		rooms:   rooms,
		storage: s,
		entries: make(map[string]*waitingEntry),
	}
}

// JoinQueue matches the caller against the current queue or parks them in
// it. The caller is inserted as a claimed entry up front, so both sides of
// any pairing are held exclusively before the room exists: a concurrent
// duplicate join is rejected, and no concurrent scan can hand the caller out
// as a candidate while its own attempt is in flight. Candidates are scanned
// oldest first; a candidate is compatible when the language tags match and
// either the caller declared no interests or the two interest sets
// intersect. A candidate whose room creation fails is released and skipped;
// with no candidate left the caller's claim converts into a live waiting
// entry.
func (m *Matcher) JoinQueue(userID string, criteria models.MatchCriteria) (*MatchResult, error) {
	self := &waitingEntry{
		WaitingEntry: models.WaitingEntry{
			UserID:     userID,
			Criteria:   criteria,
			EnqueuedAt: time.Now(),
		},
		claimed: true,
	}
	m.mu.Lock()
	if _, ok := m.entries[userID]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyQueued
	}
	m.entries[userID] = self
	m.mu.Unlock()

	tried := make(map[string]bool)
	for {
		candidate := m.claimCandidate(userID, criteria, tried)
		if candidate == nil {
			break
		}

		room, err := m.rooms.CreateRoom(candidate.UserID, userID)
		if err != nil {
			// The room never came to exist; release the candidate and
			// keep scanning, skipping it on later passes.
			log.WithFields(log.Fields{"user_id": userID, "candidate": candidate.UserID}).
				WithError(err).Error("room creation failed, releasing claim")
			tried[candidate.UserID] = true
			m.release(candidate.UserID)
			continue
		}

		m.consume(candidate.UserID)
		m.consume(userID)
		if err := m.storage.RemoveUserFromSearchQueue(candidate.UserID); err != nil {
			log.WithField("user_id", candidate.UserID).WithError(err).
				Warn("failed to remove user from queue mirror")
		}

		log.WithFields(log.Fields{
			"room_id": room.RoomID,
			"user1":   candidate.UserID,
			"user2":   userID,
		}).Info("match found")

		return &MatchResult{
			Status:    StatusMatched,
			RoomID:    room.RoomID,
			PartnerID: candidate.UserID,
		}, nil
	}

	m.mu.Lock()
	if self.removed {
		// the user left while the attempt was in flight
		delete(m.entries, userID)
		m.mu.Unlock()
		return &MatchResult{Status: StatusQueued}, nil
	}
	self.claimed = false
	m.mu.Unlock()

	if err := m.storage.AddUserToSearchQueue(userID); err != nil {
		log.WithField("user_id", userID).WithError(err).
			Warn("failed to add user to queue mirror")
	}

	log.WithField("user_id", userID).Info("user queued for matching")
	return &MatchResult{Status: StatusQueued}, nil
}

// LeaveQueue removes the caller's waiting entry, effective immediately for
// every future routing decision. Idempotent. An entry claimed by an
// in-flight match is marked for removal and deleted the moment the claim
// would otherwise be released.
func (m *Matcher) LeaveQueue(userID string) {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if ok {
		if e.claimed {
			e.removed = true
		} else {
			delete(m.entries, userID)
		}
	}
	m.mu.Unlock()

	if ok {
		if err := m.storage.RemoveUserFromSearchQueue(userID); err != nil {
			log.WithField("user_id", userID).WithError(err).
				Warn("failed to remove user from queue mirror")
		}
	}
}

// QueueDepth returns the number of live waiting entries.
func (m *Matcher) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.claimed {
			n++
		}
	}
	return n
}

// claimCandidate scans the queue oldest-first and claims the first
// compatible unclaimed entry, skipping entries already tried in this
// attempt. Returns nil when no candidate is available.
func (m *Matcher) claimCandidate(userID string, criteria models.MatchCriteria, tried map[string]bool) *models.WaitingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*waitingEntry, 0, len(m.entries))
	for id, e := range m.entries {
		if id == userID || e.claimed || tried[id] {
			continue
		}
		if compatible(criteria, e.Criteria) {
			candidates = append(candidates, e)
		}
	}
	// oldest first, for fairness
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
	})

	if len(candidates) == 0 {
		return nil
	}
	winner := candidates[0]
	winner.claimed = true
	snapshot := winner.WaitingEntry
	return &snapshot
}

func (m *Matcher) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return
	}
	if e.removed {
		delete(m.entries, userID)
		return
	}
	e.claimed = false
}

func (m *Matcher) consume(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

// compatible reports whether a queued candidate fits the caller's criteria:
// same language, and either the caller declared no interests or at least one
// interest is shared.
func compatible(criteria, candidate models.MatchCriteria) bool {
	if criteria.Language != candidate.Language {
		return false
	}
	if len(criteria.Interests) == 0 {
		return true
	}
	for _, want := range criteria.Interests {
		for _, have := range candidate.Interests {
			if want == have {
				return true
			}
		}
	}
	return false
}
