package actor

import (
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/envelope"
)

// Action is something a handler call wants the runner to do. There are
// exactly two kinds, matching the spec's §4.E contract.
type Action[K any] interface {
	apply(r *Runner[K], now time.Time) error
}

// Send hands an envelope directly to the line I/O bridge.
type Send[K any] struct {
	Envelope envelope.Envelope
}

func (a Send[K]) apply(r *Runner[K], _ time.Time) error {
	line, err := envelope.Encode(a.Envelope)
	if err != nil {
		return err
	}
	if err := r.bridge.Write(line); err != nil {
		return newIOError(err)
	}
	r.metrics.ObserveEnvelopeOut(envelope.TypeTag(a.Envelope.Body))
	return nil
}

// SetTimer registers key to fire after delay, measured from the loop's
// current `now`.
type SetTimer[K any] struct {
	Delay time.Duration
	Key   K
}

func (a SetTimer[K]) apply(r *Runner[K], now time.Time) error {
	r.timers.Add(now.Add(a.Delay), a.Key)
	return nil
}
