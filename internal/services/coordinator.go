// Package services – Coordinator
//
// The Coordinator sequences every mutating operation as "persist, then
// notify". The write runs first; only when it succeeds are its membership
// changes applied to live rooms and its events dispatched. Notification is
// best-effort: it never fails the operation and never rolls the write back.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-realtime/internal/realtime"
)

// Notifier delivers domain events to live connections.
type Notifier interface {
	Dispatch(ctx context.Context, events ...realtime.Event)
}

// MembershipSync applies committed membership changes to live rooms.
type MembershipSync interface {
	OnMembershipChanged(ctx context.Context, conversationID string, added, removed []string)
}

// MemberLookup resolves the current members of a conversation.
type MemberLookup interface {
	MembersOf(ctx context.Context, conversationID string) ([]string, error)
}

// MembershipChange is one conversation's membership delta.
type MembershipChange struct {
	ConversationID string
	Added          []string
	Removed        []string
}

// Outcome is what a successful write asks the Coordinator to publish.
// Membership changes are applied before events are dispatched so that rooms
// already reflect the write when its events go out.
type Outcome struct {
	Membership []MembershipChange
	Events     []realtime.Event
}

// Coordinator runs writes and publishes their outcome. A nil Coordinator, or
// one without collaborators, runs writes without notifying.
type Coordinator struct {
	Notifier Notifier
	Sync     MembershipSync
}

// NewCoordinator returns a Coordinator publishing through n and s.
func NewCoordinator(n Notifier, s MembershipSync) *Coordinator {
	return &Coordinator{Notifier: n, Sync: s}
}

// Run executes write and, when it succeeds, publishes the returned Outcome.
// The write's error is returned unchanged; publishing errors never are.
func (c *Coordinator) Run(ctx context.Context, op string, write func(ctx context.Context) (Outcome, error)) error {
	tr := otel.Tracer("services/Coordinator")
	ctx, span := tr.Start(ctx, op)
	defer span.End()

	out, err := write(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.Int("membership.changes", len(out.Membership)),
		attribute.Int("events", len(out.Events)),
	)
	c.publish(ctx, op, out)
	return nil
}

func (c *Coordinator) publish(ctx context.Context, op string, out Outcome) {
	if c == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Ctx(ctx).Str("op", op).Interface("panic", r).Msg("notify phase panicked; write already committed")
			trace.SpanFromContext(ctx).AddEvent("notify.panic")
		}
	}()

	if c.Sync != nil {
		for _, m := range out.Membership {
			if len(m.Added) == 0 && len(m.Removed) == 0 {
				continue
			}
			c.Sync.OnMembershipChanged(ctx, m.ConversationID, m.Added, m.Removed)
		}
	}
	if c.Notifier != nil && len(out.Events) > 0 {
		c.Notifier.Dispatch(ctx, out.Events...)
	}
}
