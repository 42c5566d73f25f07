package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyAuthenticated is returned when a connection bound to one user is
// asked to authenticate as another.
var ErrAlreadyAuthenticated = errors.New("connection already authenticated as another user")

// syncAttempts bounds how often a room computation is redone when membership
// changes race it.
const syncAttempts = 3

// Registry indexes live connections by user identity and joins each
// authenticated connection to its rooms.
type Registry struct {
	mu    sync.Mutex
	users map[string]string              // connID -> userID ("" while anonymous)
	conns map[string]map[string]struct{} // userID -> connIDs

	broker   *Broker
	topology *Topology
	log      zerolog.Logger
}

func newRegistry(b *Broker) *Registry {
	return &Registry{
		users:  make(map[string]string),
		conns:  make(map[string]map[string]struct{}),
		broker: b,
		log:    log.With().Str("component", "realtime.registry").Logger(),
	}
}

// Register records a connection, optionally already bound to userID, and
// joins it to the user's rooms. Registering a known id again only
// (re)authenticates it. A new connection whose rooms cannot be resolved is
// dropped again before the error is returned.
func (r *Registry) Register(ctx context.Context, c Conn, userID string) error {
	r.mu.Lock()
	_, known := r.users[c.ID()]
	if !known {
		r.users[c.ID()] = ""
		connGauge.Inc()
	}
	r.mu.Unlock()
	r.broker.Attach(c)

	if userID == "" {
		return nil
	}
	if err := r.Authenticate(ctx, c.ID(), userID); err != nil {
		if !known {
			r.Unregister(c.ID())
		}
		return err
	}
	return nil
}

// Authenticate binds userID to an anonymous connection and joins it to every
// room of that user. Unknown connection ids are ignored. Authenticating again
// as the same user re-synchronises its rooms.
func (r *Registry) Authenticate(ctx context.Context, connID, userID string) error {
	r.mu.Lock()
	current, ok := r.users[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if current != "" && current != userID {
		r.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	r.users[connID] = userID
	set := r.conns[userID]
	if set == nil {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
	r.mu.Unlock()

	return r.syncRooms(ctx, connID, userID)
}

// syncRooms joins connID to the user's rooms and leaves conversation rooms
// the user no longer belongs to. Storage is read without holding r.mu; if a
// membership change lands meanwhile the computation is redone.
func (r *Registry) syncRooms(ctx context.Context, connID, userID string) error {
	for attempt := 0; attempt < syncAttempts; attempt++ {
		epoch := r.topology.Epoch()
		rooms, err := r.topology.ComputeRoomsForUser(ctx, userID)
		if err != nil {
			return err
		}

		want := make(map[Room]struct{}, len(rooms))
		for _, room := range rooms {
			want[room] = struct{}{}
			if !r.broker.Join(connID, room) {
				return nil // disconnected meanwhile
			}
		}
		for _, room := range r.broker.RoomsOf(connID) {
			if _, keep := want[room]; !keep && room.Kind() == KindConversation {
				r.broker.Leave(connID, room)
			}
		}

		if r.topology.Epoch() == epoch {
			return nil
		}
	}
	r.log.Warn().Str("conn_id", connID).Str("user_id", userID).Msg("membership kept changing during room sync")
	return nil
}

// Unregister forgets a connection and drops its room joins. Unknown ids are
// ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	userID, ok := r.users[connID]
	if ok {
		delete(r.users, connID)
		connGauge.Dec()
		if set := r.conns[userID]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.conns, userID)
			}
		}
	}
	r.mu.Unlock()
	r.broker.Detach(connID)
}

// ConnectionsFor returns the live connection ids of userID, sorted.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.conns[userID]))
	for id := range r.conns[userID] {
		out = append(out, id)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// UserOf returns the identity bound to a connection ("" when anonymous) and
// whether the connection is registered.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[connID]
	return u, ok
}
