package broadcast

import (
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/actor"
	"github.com/melgorithm/gossip-broadcast/internal/envelope"
	"github.com/melgorithm/gossip-broadcast/internal/node"
	"github.com/melgorithm/gossip-broadcast/internal/timerqueue"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// timerKind discriminates the two shapes of timer this actor arms. Reusing
// one TimerKey type (instead of two handler types) keeps a single
// timerqueue.Queue, per the runner's one-queue-per-actor contract.
type timerKind int

const (
	timerSendBatch timerKind = iota
	timerCheckAck
)

// TimerKey is this actor's timer key: either "try to release the pending
// batch" (Value unused) or "check whether Value has reached full
// coverage yet" (Value is the value to check).
type TimerKey struct {
	Kind  timerKind
	Value int64
}

// Metrics is the narrow surface this engine needs from whatever
// observability backend is wired in. Declared here, not in
// internal/metrics, so this package never imports Prometheus directly —
// internal/metrics.Collector satisfies it.
type Metrics interface {
	ObserveBatchRelease(valueCount int)
	ObserveRebroadcast()
	ObserveRateLimitedSend()
	SetSeenValues(n int)
	SetBatchQueueDepth(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveBatchRelease(int)   {}
func (noopMetrics) ObserveRebroadcast()       {}
func (noopMetrics) ObserveRateLimitedSend()   {}
func (noopMetrics) SetSeenValues(int)         {}
func (noopMetrics) SetBatchQueueDepth(int)    {}

// Options configures a broadcast Actor. Zero-value Fanout/TargetOps or nil
// Logger/Metrics fall back to sensible defaults in NewFactory.
type Options struct {
	// Fanout is the maximum number of ring peers each node forwards a
	// value to. The base spec's worked examples use 2-4.
	Fanout int

	// TargetOpsPerBroadcast bounds (N-1)*Fanout/BatchSize, the number of
	// outbound envelopes one client broadcast eventually causes
	// cluster-wide. Used to size the batch.
	TargetOpsPerBroadcast int

	// SingleMessageDelay is how long a value may sit in the batch queue
	// before being released even if the batch hasn't filled up.
	SingleMessageDelay time.Duration

	// MaxAckDelay is how long this node waits after first observing a
	// value before checking whether at least Fanout distinct nodes have
	// sent it here, re-broadcasting if coverage is incomplete.
	MaxAckDelay time.Duration

	// MaxBroadcastRate caps outbound broadcast envelopes per second,
	// guarding against retry storms on a flaky cluster. Zero disables
	// the limiter.
	MaxBroadcastRate float64

	Logger  zerolog.Logger
	Metrics Metrics
}

// NewFactory returns an actor.Factory building a broadcast Actor once
// ThisNode is known.
func NewFactory(opts Options) actor.Factory[TimerKey] {
	return func(this *node.ThisNode) (actor.Handler[TimerKey], error) {
		fanout := opts.Fanout
		if fanout <= 0 {
			fanout = 2
		}
		targetOps := opts.TargetOpsPerBroadcast
		if targetOps <= 0 {
			targetOps = 20
		}
		singleDelay := opts.SingleMessageDelay
		if singleDelay <= 0 {
			singleDelay = 200 * time.Millisecond
		}
		maxAckDelay := opts.MaxAckDelay
		if maxAckDelay <= 0 {
			maxAckDelay = 2 * time.Second
		}
		metrics := opts.Metrics
		if metrics == nil {
			metrics = noopMetrics{}
		}

		nextNodes, err := this.RingPeers(fanout)
		if err != nil {
			return nil, err
		}

		// batchSize derives from the worked example in the base spec:
		// ceil(peerOpsPerBroadcast / targetOps), floored at 1 so a
		// lone-peer cluster still releases immediately.
		peerOps := (len(this.NodeIDs) - 1) * fanout
		batchSize := 1
		if targetOps > 0 && peerOps > targetOps {
			batchSize = (peerOps + targetOps - 1) / targetOps
		}

		var limiter *rate.Limiter
		if opts.MaxBroadcastRate > 0 {
			limiter = rate.NewLimiter(rate.Limit(opts.MaxBroadcastRate), fanout+1)
		}

		return &Actor{
			this:        this,
			nextNodes:   nextNodes,
			fanout:      fanout,
			batchSize:   batchSize,
			singleDelay: singleDelay,
			maxAckDelay: maxAckDelay,
			seen:        make(map[int64]map[node.ID]struct{}),
			batch:       timerqueue.New[int64](),
			limiter:     limiter,
			metrics:     metrics,
			logger:      opts.Logger.With().Str("component", "broadcast").Logger(),
		}, nil
	}
}

// Actor implements actor.Handler[TimerKey]: the core of component F. It
// tracks which values it has observed and from whom, batches outbound
// fan-out to ring peers, and re-broadcasts values that fewer than fanout
// distinct nodes have sent here within MaxAckDelay.
type Actor struct {
	this      *node.ThisNode
	nextNodes []node.ID

	fanout      int
	batchSize   int
	singleDelay time.Duration
	maxAckDelay time.Duration

	// seen[v] is the set of nodes (by node.ID, clients and peers alike)
	// this node has received v from; this node itself is never added.
	// Coverage is considered complete once the set holds at least fanout
	// entries.
	seen map[int64]map[node.ID]struct{}

	// batch holds values awaiting fan-out, keyed by enqueue time so the
	// oldest entry's age drives the release decision. Reuses
	// timerqueue.Queue exactly as the base spec's Record type intends.
	batch *timerqueue.Queue[int64]

	limiter *rate.Limiter
	metrics Metrics
	logger  zerolog.Logger
}

// OnRequest dispatches broadcast/read/topology requests. Replies
// (broadcast_ok, read_ok, topology_ok) and unrelated types are protocol
// violations here: this actor only ever receives requests.
func (a *Actor) OnRequest(in envelope.Inbound, now time.Time) ([]actor.Action[TimerKey], error) {
	switch body := in.Body.(type) {
	case BroadcastRequest:
		return a.handleBroadcast(in, body, now)
	case ReadRequest:
		return a.handleRead(in)
	case TopologyRequest:
		return a.handleTopology(in)
	default:
		return nil, actor.NewProtocolError("unexpected message type %q at broadcast node", in.Type)
	}
}

func (a *Actor) handleBroadcast(in envelope.Inbound, body BroadcastRequest, now time.Time) ([]actor.Action[TimerKey], error) {
	var actions []actor.Action[TimerKey]

	for _, v := range body.Message.Values() {
		actions = append(actions, a.observe(in.Src, v, now)...)
	}

	actions = append(actions, a.tryRelease(now)...)

	// Per the base spec's batch-reply asymmetry: a client's single value
	// gets an explicit broadcast_ok; a peer's batch forward does not, since
	// peers correlate coverage through re-observation, not through replies.
	// The fan-out goes out before the reply: a client shouldn't be able to
	// observe broadcast_ok and assume the value has already propagated.
	if !body.Message.IsBatch() {
		addr := node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}
		reply := envelope.Reply(addr, BroadcastOk{InReplyTo: uint64(in.MsgID), Type: "broadcast_ok"})
		actions = append(actions, actor.Send[TimerKey]{Envelope: reply})
	}

	return actions, nil
}

func (a *Actor) handleRead(in envelope.Inbound) ([]actor.Action[TimerKey], error) {
	values := make([]int64, 0, len(a.seen))
	for v := range a.seen {
		values = append(values, v)
	}
	addr := node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}
	reply := envelope.Reply(addr, ReadOk{InReplyTo: uint64(in.MsgID), Type: "read_ok", Messages: sortedInt64s(values)})
	return []actor.Action[TimerKey]{actor.Send[TimerKey]{Envelope: reply}}, nil
}

func (a *Actor) handleTopology(in envelope.Inbound) ([]actor.Action[TimerKey], error) {
	// The harness-supplied topology is accepted but ignored: this node
	// already computed its deterministic ring overlay from node_ids at
	// init (see node.RingPeers), which next_nodes includes the sender
	// itself by design — see the base spec's open question on that point.
	addr := node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}
	reply := envelope.Reply(addr, TopologyOk{InReplyTo: uint64(in.MsgID), Type: "topology_ok"})
	return []actor.Action[TimerKey]{actor.Send[TimerKey]{Envelope: reply}}, nil
}

// observe records that src has vouched for v (a client broadcasting it,
// or a peer forwarding it). The first time v is observed at all, it's
// queued for fan-out and a CheckAck timer is armed to verify coverage
// later.
func (a *Actor) observe(src node.ID, v int64, now time.Time) []actor.Action[TimerKey] {
	peers, firstSeen := a.seen[v]
	if !firstSeen {
		peers = make(map[node.ID]struct{})
		a.seen[v] = peers
	}
	peers[src] = struct{}{}
	a.metrics.SetSeenValues(len(a.seen))

	if firstSeen {
		return nil
	}

	a.batch.Add(now, v)
	a.metrics.SetBatchQueueDepth(a.batch.Len())
	return []actor.Action[TimerKey]{
		actor.SetTimer[TimerKey]{Delay: a.maxAckDelay, Key: TimerKey{Kind: timerCheckAck, Value: v}},
	}
}

// tryRelease fans the oldest pending batch entries out to every ring peer
// once the batch has filled up or its oldest entry has aged past
// singleDelay; otherwise it arms a timer to re-check later.
func (a *Actor) tryRelease(now time.Time) []actor.Action[TimerKey] {
	oldest, _, ok := a.batch.PeekMin()
	if !ok {
		return nil
	}

	age := now.Sub(oldest)
	if age < a.singleDelay && a.batch.Len() < a.batchSize {
		wait := a.singleDelay - age
		if wait <= 0 {
			wait = time.Millisecond
		}
		return []actor.Action[TimerKey]{
			actor.SetTimer[TimerKey]{Delay: wait, Key: TimerKey{Kind: timerSendBatch}},
		}
	}

	values := a.batch.PopAll()
	a.metrics.SetBatchQueueDepth(0)
	if len(values) == 0 || len(a.nextNodes) == 0 {
		return nil
	}

	batchMsg := NewBatchValue(values)
	var actions []actor.Action[TimerKey]
	for _, peer := range a.nextNodes {
		if a.limiter != nil && !a.limiter.Allow() {
			a.metrics.ObserveRateLimitedSend()
			continue
		}
		addr := a.this.AllocateOutboundAddress(peer)
		env := envelope.Send(addr, BroadcastRequest{MsgID: uint64(addr.MsgID), Type: "broadcast", Message: batchMsg})
		actions = append(actions, actor.Send[TimerKey]{Envelope: env})
	}
	a.metrics.ObserveBatchRelease(len(values))
	return actions
}

// OnTimeout handles the two TimerKey kinds: retry the batch release, or
// check a value's coverage and re-broadcast if fewer than fanout distinct
// nodes have sent it here yet.
func (a *Actor) OnTimeout(key TimerKey, now time.Time) ([]actor.Action[TimerKey], error) {
	switch key.Kind {
	case timerSendBatch:
		return a.tryRelease(now), nil
	case timerCheckAck:
		return a.checkAck(key.Value, now)
	default:
		return nil, actor.NewHandlerError("broadcast actor: unknown timer kind %d", key.Kind)
	}
}

// checkAck re-queues Value for another fan-out round if fewer than fanout
// distinct nodes have vouched for it so far, arming another CheckAck to
// follow up. A CheckAck firing for a value this actor no longer has any
// record of is an invariant violation: values are never evicted from seen.
func (a *Actor) checkAck(v int64, now time.Time) ([]actor.Action[TimerKey], error) {
	peers, ok := a.seen[v]
	if !ok {
		return nil, actor.NewHandlerError("broadcast actor: CheckAck fired for untracked value %d", v)
	}

	if len(peers) >= a.fanout {
		return nil, nil
	}

	a.metrics.ObserveRebroadcast()
	a.batch.Add(now, v)
	a.metrics.SetBatchQueueDepth(a.batch.Len())

	actions := a.tryRelease(now)
	actions = append(actions, actor.SetTimer[TimerKey]{Delay: a.maxAckDelay, Key: TimerKey{Kind: timerCheckAck, Value: v}})
	return actions, nil
}
