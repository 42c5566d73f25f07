package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dispatcher encodes domain events and writes them to their targets.
// Dispatch never blocks on a client and never retries; a target that
// cannot be reached is logged and counted, and the remaining targets are
// unaffected.
type Dispatcher struct {
	broker *Broker
	log    zerolog.Logger
}

// NewDispatcher returns a Dispatcher delivering through b.
func NewDispatcher(b *Broker) *Dispatcher {
	return &Dispatcher{
		broker: b,
		log:    log.With().Str("component", "realtime.dispatcher").Logger(),
	}
}

// Dispatch fans out each event in order. Within one event a connection
// receives the frame at most once, even when several targets reach it.
func (d *Dispatcher) Dispatch(_ context.Context, events ...Event) {
	for _, e := range events {
		d.dispatch(e)
	}
}

func (d *Dispatcher) dispatch(e Event) {
	logger := d.log.With().Str("event", e.Name).Logger()
	frame, err := json.Marshal(Envelope{Event: e.Name, Data: e.Payload})
	if err != nil {
		droppedTotal.WithLabelValues(dropEncode).Inc()
		logger.Error().Err(err).Msg("encode event")
		return
	}
	eventsTotal.WithLabelValues(e.Name).Inc()

	sent := make(map[string]struct{})
	for _, t := range e.Targets {
		if err := d.deliver(e.Name, t, frame, sent); err != nil {
			logger.Error().Err(err).Str("target", t.Room.String()).Msg("fan-out target failed")
		}
	}
}

// deliver writes one target. Panics are contained so a single bad target
// cannot take down its siblings or the caller.
func (d *Dispatcher) deliver(name string, t Target, frame []byte, sent map[string]struct{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			droppedTotal.WithLabelValues(dropInvalidTarget).Inc()
			err = fmt.Errorf("panic delivering %s: %v", name, r)
		}
	}()

	if !t.Room.Valid() {
		droppedTotal.WithLabelValues(dropInvalidTarget).Inc()
		return fmt.Errorf("%w: %q", ErrInvalidRoom, t.Room.String())
	}

	before := len(sent)
	members, failed := d.broker.EmitToRoom(t.Room, frame, sent)
	if members == 0 && t.Fallback != "" {
		if _, dup := sent[t.Fallback]; !dup {
			sent[t.Fallback] = struct{}{}
			switch err := d.broker.EmitToConnection(t.Fallback, frame); {
			case errors.Is(err, ErrUnknownConnection):
				delete(sent, t.Fallback)
			case err != nil:
				failed = map[string]error{t.Fallback: err}
			}
		}
	}

	for id, ferr := range failed {
		droppedTotal.WithLabelValues(dropSendFailed).Inc()
		d.log.Warn().Err(ferr).Str("event", name).Str("conn_id", id).Msg("send failed")
	}
	delivered := len(sent) - before - len(failed)
	if delivered > 0 {
		deliveriesTotal.WithLabelValues(name).Add(float64(delivered))
	}
	if members == 0 && len(sent) == before {
		droppedTotal.WithLabelValues(dropUnreachable).Inc()
		d.log.Debug().Str("event", name).Str("target", t.Room.String()).Msg("fan-out target unreachable")
	}
	return nil
}
