package realtime

import (
	"context"
	"errors"
	"time"
)

// ErrNotSubscribable is returned when a client asks to join a room whose
// membership is derived from persisted state.
var ErrNotSubscribable = errors.New("room is not client-subscribable")

// Options configures a Hub.
type Options struct {
	// MembershipCacheSize and MembershipCacheTTL enable the conversation
	// member cache when both are positive.
	MembershipCacheSize int
	MembershipCacheTTL  time.Duration
}

// Hub is the process-wide realtime entry point. Build one at startup and
// inject it wherever events are produced or connections are served.
type Hub struct {
	broker     *Broker
	registry   *Registry
	topology   *Topology
	dispatcher *Dispatcher
}

// NewHub wires the broker, registry, topology and dispatcher over store.
func NewHub(store MembershipStore, opts Options) *Hub {
	b := NewBroker()
	reg := newRegistry(b)
	topo := newTopology(store, b, reg.ConnectionsFor, opts.MembershipCacheSize, opts.MembershipCacheTTL)
	reg.topology = topo
	return &Hub{
		broker:     b,
		registry:   reg,
		topology:   topo,
		dispatcher: NewDispatcher(b),
	}
}

// Register records a new connection, joined to userID's rooms when given.
func (h *Hub) Register(ctx context.Context, c Conn, userID string) error {
	return h.registry.Register(ctx, c, userID)
}

// Authenticate binds an identity to an anonymous connection.
func (h *Hub) Authenticate(ctx context.Context, connID, userID string) error {
	return h.registry.Authenticate(ctx, connID, userID)
}

// Unregister drops a connection on disconnect.
func (h *Hub) Unregister(connID string) { h.registry.Unregister(connID) }

// ConnectionsFor returns the live connection ids of a user.
func (h *Hub) ConnectionsFor(userID string) []string { return h.registry.ConnectionsFor(userID) }

// UserOf returns the identity bound to a connection.
func (h *Hub) UserOf(connID string) (string, bool) { return h.registry.UserOf(connID) }

// Subscribe joins a connection to a client-subscribable room (login
// session rooms only).
func (h *Hub) Subscribe(connID string, room Room) error {
	if room.Kind() != KindLoginSession || !room.Valid() {
		return ErrNotSubscribable
	}
	if !h.broker.Join(connID, room) {
		return ErrUnknownConnection
	}
	return nil
}

// Unsubscribe leaves a client-subscribable room.
func (h *Hub) Unsubscribe(connID string, room Room) {
	if room.Kind() == KindLoginSession {
		h.broker.Leave(connID, room)
	}
}

// OnMembershipChanged applies a committed membership change to live rooms.
func (h *Hub) OnMembershipChanged(ctx context.Context, conversationID string, added, removed []string) {
	h.topology.OnMembershipChanged(ctx, conversationID, added, removed)
}

// MembersOf returns a conversation's member ids, possibly from cache.
func (h *Hub) MembersOf(ctx context.Context, conversationID string) ([]string, error) {
	return h.topology.MembersOf(ctx, conversationID)
}

// Dispatch fans out events to their targets.
func (h *Hub) Dispatch(ctx context.Context, events ...Event) {
	h.dispatcher.Dispatch(ctx, events...)
}

// Joined reports whether a connection is in room.
func (h *Hub) Joined(connID string, room Room) bool { return h.broker.Joined(connID, room) }

// RoomsOf lists a connection's rooms.
func (h *Hub) RoomsOf(connID string) []Room { return h.broker.RoomsOf(connID) }

// Close disconnects every client.
func (h *Hub) Close() { h.broker.Close(CloseShutdown, "server shutdown") }
