package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ErrMembershipDrift marks a room operation that contradicts persisted
// membership. It is logged and counted, never returned to API callers.
var ErrMembershipDrift = errors.New("membership drift")

// MembershipStore is the persisted source of truth for conversation
// membership.
type MembershipStore interface {
	ListConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListMemberIDs(ctx context.Context, conversationID string) ([]string, error)
}

// Topology keeps conversation rooms in line with persisted membership.
type Topology struct {
	store  MembershipStore
	broker *Broker
	conns  func(userID string) []string
	cache  *expirable.LRU[string, []string] // nil when disabled
	epoch  atomic.Uint64
	log    zerolog.Logger
}

// newTopology wires a Topology; conns resolves a user's live connections.
func newTopology(store MembershipStore, b *Broker, conns func(string) []string, cacheSize int, cacheTTL time.Duration) *Topology {
	t := &Topology{
		store:  store,
		broker: b,
		conns:  conns,
		log:    log.With().Str("component", "realtime.topology").Logger(),
	}
	if cacheSize > 0 && cacheTTL > 0 {
		t.cache = expirable.NewLRU[string, []string](cacheSize, nil, cacheTTL)
	}
	return t
}

// ComputeRoomsForUser returns the room of every conversation the user belongs
// to plus the user's own channel.
func (t *Topology) ComputeRoomsForUser(ctx context.Context, userID string) ([]Room, error) {
	ids, err := t.store.ListConversationIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(ids)+1)
	for _, id := range ids {
		rooms = append(rooms, ConversationRoom(id))
	}
	return append(rooms, UserChannel(userID)), nil
}

// MembersOf returns the member ids of a conversation, served from the cache
// when it holds a fresh entry.
func (t *Topology) MembersOf(ctx context.Context, conversationID string) ([]string, error) {
	if t.cache != nil {
		if ids, ok := t.cache.Get(conversationID); ok {
			return ids, nil
		}
	}
	ids, err := t.store.ListMemberIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.Add(conversationID, ids)
	}
	return ids, nil
}

// Invalidate drops any cached membership of the conversation.
func (t *Topology) Invalidate(conversationID string) {
	if t.cache != nil {
		t.cache.Remove(conversationID)
	}
}

// OnMembershipChanged applies a committed membership write to live
// connections: every connection of an added user joins the conversation room
// and every connection of a removed user leaves it. Users without live
// connections are skipped; their rooms are computed on next connect.
//
// Each user is checked against a fresh store read first. A change the store
// does not reflect is drift; it is logged, counted and not applied.
func (t *Topology) OnMembershipChanged(ctx context.Context, conversationID string, added, removed []string) {
	t.Invalidate(conversationID)
	t.epoch.Add(1)
	if len(added) == 0 && len(removed) == 0 {
		return
	}

	room := ConversationRoom(conversationID)
	current, err := t.store.ListMemberIDs(ctx, conversationID)
	verified := err == nil
	if err != nil {
		t.log.Warn().Ctx(ctx).Err(err).Str("conversation_id", conversationID).Msg("membership check unavailable; applying change as given")
	}

	for _, userID := range lo.Uniq(added) {
		if verified && !lo.Contains(current, userID) {
			t.drift(ctx, conversationID, userID, "join")
			continue
		}
		for _, connID := range t.conns(userID) {
			t.broker.Join(connID, room)
		}
	}
	for _, userID := range lo.Uniq(removed) {
		if verified && lo.Contains(current, userID) {
			t.drift(ctx, conversationID, userID, "leave")
			continue
		}
		for _, connID := range t.conns(userID) {
			t.broker.Leave(connID, room)
		}
	}
}

// Epoch increments on every membership change; the registry uses it to
// detect changes racing a room computation.
func (t *Topology) Epoch() uint64 { return t.epoch.Load() }

func (t *Topology) drift(ctx context.Context, conversationID, userID, op string) {
	driftTotal.Inc()
	t.log.Error().
		Ctx(ctx).
		Err(ErrMembershipDrift).
		Str("conversation_id", conversationID).
		Str("user_id", userID).
		Str("op", op).
		Msg("room operation contradicts persisted membership; skipped")
}
