package app

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/locpham26/BoardGame-Server/internal/domain"
)

// StaleRoomTimeout is how long an empty room may linger before the sweep
// reaps it. Rooms normally disappear when their last player leaves; this
// covers rooms that were created but never joined.
const StaleRoomTimeout = 2 * time.Hour

// Registry creates, looks up, lists and removes room sessions by id. It is
// the only state shared across rooms; everything behind a session is owned
// by that session alone.
type Registry struct {
	sessions map[string]*RoomSession
	mu       sync.RWMutex

	scheduler     Scheduler
	grace         time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its stale-room sweep
func NewRegistry(scheduler Scheduler, grace, sweepInterval time.Duration, logger *slog.Logger) *Registry {
	r := &Registry{
		sessions:      make(map[string]*RoomSession),
		scheduler:     scheduler,
		grace:         grace,
		sweepInterval: sweepInterval,
		logger:        logger,
		done:          make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Create opens a new room. An id that is already open is rejected, never
// silently duplicated.
func (r *Registry) Create(id string) (*RoomSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, domain.ErrDuplicateRoom
	}

	session := NewRoomSession(domain.NewRoom(id), r.scheduler, r.grace, r.logger)
	r.sessions[id] = session

	r.logger.Info("room created", "roomId", id)
	return session, nil
}

// Find returns the session for a room id
func (r *Registry) Find(id string) (*RoomSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return session, nil
}

// Remove closes the room's session, cancelling its pending timers, before
// deleting the entry, so no stale callback can touch a freed room.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[id]; ok {
		session.Close()
		delete(r.sessions, id)
		r.logger.Info("room removed", "roomId", id)
	}
}

// List returns the joinable rooms: not yet started, at least one player
func (r *Registry) List() []domain.RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]domain.RoomView, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.Joinable() {
			views = append(views, session.View())
		}
	}
	return views
}

// Search returns the joinable rooms whose id contains the query
func (r *Registry) Search(query string) []domain.RoomView {
	return lo.Filter(r.List(), func(v domain.RoomView, _ int) bool {
		return strings.Contains(v.ID, query)
	})
}

// RoomCount returns the number of open rooms
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PlayerCount returns the total number of seated players across all rooms
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, session := range r.sessions {
		total += session.PlayerCount()
	}
	return total
}

// Close shuts down every session and stops the sweep
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, session := range r.sessions {
			session.Close()
		}
		r.sessions = make(map[string]*RoomSession)
	})
}

// sweepLoop periodically reaps rooms that stayed empty past the timeout
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweepStaleRooms()
		}
	}
}

func (r *Registry) sweepStaleRooms() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, session := range r.sessions {
		if session.PlayerCount() == 0 && now.Sub(session.CreatedAt()) > StaleRoomTimeout {
			session.Close()
			delete(r.sessions, id)
			r.logger.Info("stale room swept", "roomId", id)
		}
	}
}
