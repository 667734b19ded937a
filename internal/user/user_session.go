package user

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UserSession: per-identity state shared by all of a user's connections.
// It never carries room membership; a reconnect starts from a fresh room_state.
type UserSession struct {
	UserID            string
	LastSeen          time.Time
	LastCursorUpdate  time.Time
	ObjectRateLimiter *rate.Limiter
	CursorRateLimiter *rate.Limiter

	conns int
}

// Limits: per-session message rates
type Limits struct {
	ObjectsPerSecond float64
	ObjectBurst      int
	CursorsPerSecond float64
	CursorBurst      int
}

func DefaultLimits() Limits {
	return Limits{
		ObjectsPerSecond: 30, // 30 msg/sec, burst of 10 for objects
		ObjectBurst:      10,
		CursorsPerSecond: 60, // 60 msg/sec, burst of 20 for cursor
		CursorBurst:      20,
	}
}

type SessionManager struct {
	sessions map[string]*UserSession // userID -> session
	limits   Limits
	mu       sync.RWMutex
}

func NewSessionManager(limits Limits) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*UserSession),
		limits:   limits,
	}
}

// Acquire: gets or creates the session for userID and counts one more connection
func (sm *SessionManager) Acquire(userID string) *UserSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	session, exists := sm.sessions[userID]
	if !exists {
		session = &UserSession{
			UserID:            userID,
			ObjectRateLimiter: rate.NewLimiter(rate.Limit(sm.limits.ObjectsPerSecond), sm.limits.ObjectBurst),
			CursorRateLimiter: rate.NewLimiter(rate.Limit(sm.limits.CursorsPerSecond), sm.limits.CursorBurst),
		}
		sm.sessions[userID] = session
	}
	session.LastSeen = now
	session.conns++
	return session
}

// Release: drops one connection; the session goes away with the last one
func (sm *SessionManager) Release(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[userID]
	if !exists {
		return
	}
	session.conns--
	session.LastSeen = time.Now()
	if session.conns <= 0 {
		delete(sm.sessions, userID)
	}
}

// LastCursor: gets the last cursor update time for a user session
func (sm *SessionManager) LastCursor(userID string) (time.Time, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if session, exists := sm.sessions[userID]; exists {
		return session.LastCursorUpdate, true
	}
	return time.Time{}, false
}

// UpdateLastCursor: updates the last cursor update time for a user session
func (sm *SessionManager) UpdateLastCursor(userID string, t time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[userID]; exists {
		session.LastCursorUpdate = t
	}
}

// Count: number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}

// Cleanup: removes sessions with no connection left that were idle for maxIdle
func (sm *SessionManager) Cleanup(maxIdle time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for userID, session := range sm.sessions {
		if session.conns <= 0 && now.Sub(session.LastSeen) > maxIdle {
			delete(sm.sessions, userID)
		}
	}
}
