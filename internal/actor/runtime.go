// Package actor is the event loop (spec component E): it multiplexes
// inbound envelopes, expired timers, and handler-emitted actions over a
// single logical thread, preserving request/reply correlation and the
// ordering guarantees laid out in the base spec's §5.
//
// Grounded on original_source/src/common/runner.rs::run_actor, expressed
// with Go generics over the handler's timer-key type (the Rust original
// uses an associated type; Go's nearest idiomatic equivalent is a type
// parameter).
package actor

import (
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/envelope"
	"github.com/melgorithm/gossip-broadcast/internal/ioline"
	"github.com/melgorithm/gossip-broadcast/internal/node"
	"github.com/melgorithm/gossip-broadcast/internal/timerqueue"
	"github.com/rs/zerolog"
)

// minReadTimeout is the floor described in spec §4.E step 2: it avoids
// tight spinning when timers are bunched close together.
const minReadTimeout = time.Second

// Handler is the contract every node program implements. It mirrors the
// Rust `Actor` trait: a constructor taking the post-init cluster view, a
// request handler, and a timeout handler.
type Handler[K any] interface {
	OnRequest(in envelope.Inbound, now time.Time) ([]Action[K], error)
	OnTimeout(key K, now time.Time) ([]Action[K], error)
}

// Factory builds a Handler once ThisNode is known from the init
// handshake. Returning an error here is fatal — it means the cluster
// view the handler was given is unusable (e.g. self not found in the
// peer list).
type Factory[K any] func(this *node.ThisNode) (Handler[K], error)

// Runner drives a Handler's event loop over a line I/O bridge.
type Runner[K any] struct {
	bridge  *ioline.Bridge
	timers  *timerqueue.Queue[K]
	logger  zerolog.Logger
	handler Handler[K]
	metrics Metrics
}

// Run performs the blocking init handshake, constructs the handler, and
// then runs the event loop until the bridge closes (stdin EOF) or a
// fatal error occurs. A clean EOF returns nil; any other case returns
// the error that terminated the loop. A nil metrics disables
// instrumentation rather than requiring every caller to supply a
// collector.
func Run[K any](bridge *ioline.Bridge, logger zerolog.Logger, newHandler Factory[K], metrics Metrics) error {
	this, err := runInit(bridge, logger)
	if err != nil {
		return err
	}

	handler, err := newHandler(this)
	if err != nil {
		return NewHandlerError("constructing actor: %v", err)
	}

	if metrics == nil {
		metrics = noopMetrics{}
	}

	r := &Runner[K]{
		bridge:  bridge,
		timers:  timerqueue.New[K](),
		logger:  logger.With().Str("node_id", string(this.NodeID)).Logger(),
		handler: handler,
		metrics: metrics,
	}
	return r.loop()
}

// runInit performs the synchronous, blocking init handshake described in
// spec §4.E: the very first envelope must be an init request.
func runInit(bridge *ioline.Bridge, logger zerolog.Logger) (*node.ThisNode, error) {
	line, err := bridge.ReadBlocking()
	if err != nil {
		if err == ioline.ErrClosed {
			return nil, newIOError(err)
		}
		return nil, newIOError(err)
	}

	in, err := envelope.Decode([]byte(line))
	if err != nil {
		return nil, err
	}

	req, ok := in.Body.(envelope.InitRequest)
	if !ok || in.Type != "init" || !in.IsRequest {
		return nil, NewProtocolError("first message must be an init request, got type=%q", in.Type)
	}

	this := node.New(req.NodeID, req.NodeIDs)

	reply := envelope.Reply(node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}, envelope.NewInitOk(in.MsgID))
	line2, err := envelope.Encode(reply)
	if err != nil {
		return nil, err
	}
	if err := bridge.Write(line2); err != nil {
		return nil, newIOError(err)
	}

	logger.Info().
		Str("node_id", string(this.NodeID)).
		Int("peers", len(this.NodeIDs)).
		Msg("init complete")

	return this, nil
}

func (r *Runner[K]) loop() error {
	for {
		now := time.Now()
		expired := r.timers.PopExpired(now)
		for _, key := range expired {
			actions, err := r.handler.OnTimeout(key, now)
			if err != nil {
				return err
			}
			if err := r.execute(actions, now); err != nil {
				return err
			}
		}
		r.metrics.ObserveTimerQueueDepth(r.timers.Len())

		now = time.Now()
		waitFor := minReadTimeout
		if delay, ok := r.timers.DelayUntilNext(now); ok && delay > minReadTimeout {
			waitFor = delay
		}

		line, ok, err := r.bridge.Read(waitFor)
		if err != nil {
			if err == ioline.ErrClosed {
				return nil
			}
			return newIOError(err)
		}
		if !ok {
			continue // timeout, no envelope arrived
		}

		in, err := envelope.Decode([]byte(line))
		if err != nil {
			return err
		}
		r.metrics.ObserveEnvelopeIn(in.Type)

		actions, err := r.handler.OnRequest(in, time.Now())
		if err != nil {
			return err
		}
		if err := r.execute(actions, time.Now()); err != nil {
			return err
		}
	}
}

func (r *Runner[K]) execute(actions []Action[K], now time.Time) error {
	for _, action := range actions {
		if err := action.apply(r, now); err != nil {
			return err
		}
	}
	return nil
}
