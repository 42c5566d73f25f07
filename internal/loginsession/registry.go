// Package loginsession implements short-lived QR login sessions. A session
// is created by a device that is not signed in, observed by that device over
// its realtime connection, and resolved once by an authenticated device. The
// result is pushed over the realtime hub only; polling never returns it.
package loginsession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-realtime/internal/realtime"
)

// Status is the observable state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 60 * time.Second

// ErrSessionInvalid is returned for unknown, completed or expired sessions.
var ErrSessionInvalid = errors.New("login session invalid")

// Notifier is the slice of the realtime hub the registry needs.
type Notifier interface {
	Dispatch(ctx context.Context, events ...realtime.Event)
	Subscribe(connID string, room realtime.Room) error
	Unsubscribe(connID string, room realtime.Room)
}

// Ticket is returned by Create for rendering as a QR code.
type Ticket struct {
	ID        string    `json:"session_id"`
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Resolution is the qr:status payload.
type Resolution struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`
	Result    any    `json:"result,omitempty"`
}

type session struct {
	status    Status
	createdAt time.Time
	expiresAt time.Time
	connID    string
}

// Registry holds pending sessions in memory. Expiry is evaluated lazily on
// access; there is no background sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	ttl      time.Duration
	baseURL  string
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// New returns a Registry that publishes resolutions through n.
func New(n Notifier, ttl time.Duration, baseURL string) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		baseURL:  strings.TrimRight(baseURL, "/"),
		notifier: n,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "loginsession").Logger(),
	}
}

// Create starts a pending session.
func (r *Registry) Create() (Ticket, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Ticket{}, err
	}
	now := r.now()
	s := &session{status: StatusPending, createdAt: now, expiresAt: now.Add(r.ttl)}

	r.mu.Lock()
	r.sessions[id.String()] = s
	r.mu.Unlock()

	return Ticket{
		ID:        id.String(),
		Payload:   r.baseURL + "?session=" + id.String(),
		ExpiresAt: s.expiresAt,
	}, nil
}

// RegisterInterest records connID as the observer of the session and joins
// it to the session room. The most recent registrant replaces any earlier
// one, which also leaves the room so it never sees the result.
func (r *Registry) RegisterInterest(sessionID, connID string) error {
	var previous string
	r.mu.Lock()
	s, ok := r.liveLocked(sessionID)
	if ok {
		previous, s.connID = s.connID, connID
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionInvalid
	}
	room := realtime.LoginSessionRoom(sessionID)
	if previous != "" && previous != connID {
		r.notifier.Unsubscribe(previous, room)
	}
	if err := r.notifier.Subscribe(connID, room); err != nil {
		// Resolve falls back to connID directly when the room is empty.
		r.log.Debug().Err(err).Str("conn_id", connID).Msg("subscribe to session room")
	}
	return nil
}

// Resolve completes a pending session exactly once and pushes result to the
// observing device. It fails with ErrSessionInvalid for unknown, completed
// or expired sessions.
func (r *Registry) Resolve(ctx context.Context, sessionID string, result any) error {
	r.mu.Lock()
	s, ok := r.liveLocked(sessionID)
	if ok {
		s.status = StatusCompleted
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionInvalid
	}

	r.notifier.Dispatch(ctx, realtime.LoginSessionResolved(sessionID, s.connID, Resolution{
		SessionID: sessionID,
		Status:    StatusCompleted,
		Result:    result,
	}))
	return nil
}

// CheckStatus reports a session's state, deleting it if its TTL has passed.
// Sessions that no longer exist report expired.
func (r *Registry) CheckStatus(sessionID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.liveLocked(sessionID)
	if !ok {
		return StatusExpired
	}
	return s.status
}

// Len returns the number of stored sessions, expired ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// liveLocked returns the pending session, deleting it when expired.
func (r *Registry) liveLocked(id string) (*session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if !r.now().Before(s.expiresAt) {
		delete(r.sessions, id)
		return nil, false
	}
	return s, s.status == StatusPending
}
