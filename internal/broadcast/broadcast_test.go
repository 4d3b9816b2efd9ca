package broadcast

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/actor"
	"github.com/melgorithm/gossip-broadcast/internal/ioline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type harness struct {
	inW   io.WriteCloser
	lines chan string
	done  chan error
}

func newHarness(t *testing.T, newHandler actor.Factory[TimerKey]) *harness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	logger := zerolog.Nop()
	bridge := ioline.New(inR, outW, 32, logger, nil)

	h := &harness{inW: inW, lines: make(chan string, 32), done: make(chan error, 1)}

	go func() {
		scanner := bufio.NewScanner(outR)
		for scanner.Scan() {
			h.lines <- scanner.Text()
		}
		close(h.lines)
	}()
	go func() { h.done <- actor.Run(bridge, logger, newHandler, nil) }()

	return h
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	_, err := h.inW.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (h *harness) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-h.lines:
		require.True(t, ok)
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output")
		return ""
	}
}

func (h *harness) expectNoMoreWithin(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case line, ok := <-h.lines:
		if ok {
			t.Fatalf("expected no more output, got %q", line)
		}
	case <-time.After(d):
	}
}

func testFactory(t *testing.T) actor.Factory[TimerKey] {
	t.Helper()
	return NewFactory(Options{
		Fanout:                2,
		TargetOpsPerBroadcast: 20,
		SingleMessageDelay:    10 * time.Millisecond,
		MaxAckDelay:           40 * time.Millisecond,
		Logger:                zerolog.Nop(),
	})
}

func initCluster(t *testing.T, h *harness) {
	t.Helper()
	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"init","msg_id":1,"node_id":"n0","node_ids":["n0","n1","n2"]}}`)
	require.Contains(t, h.next(t), `"init_ok"`)
}

func TestSingleBroadcastTriggersFanoutToRingPeers(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":2,"message":7}}`)

	first := h.next(t)
	second := h.next(t)
	require.Contains(t, first, `"message":[7]`)
	require.Contains(t, second, `"message":[7]`)

	ok := h.next(t)
	require.Contains(t, ok, `"broadcast_ok"`)
	require.Contains(t, ok, `"in_reply_to":2`)

	dests := map[string]bool{}
	for _, line := range []string{first, second} {
		switch {
		case strings.Contains(line, `"dest":"n1"`):
			dests["n1"] = true
		case strings.Contains(line, `"dest":"n2"`):
			dests["n2"] = true
		}
	}
	require.True(t, dests["n1"])
	require.True(t, dests["n2"])
}

func TestPeerBatchForwardGetsNoReply(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"n1","dest":"n0","body":{"type":"broadcast","msg_id":9,"message":[42,43]}}`)

	first := h.next(t)
	second := h.next(t)
	require.Contains(t, first, `"message":[42,43]`)
	require.Contains(t, second, `"message":[42,43]`)

	// A batch forward is never answered with broadcast_ok.
	h.expectNoMoreWithin(t, 30*time.Millisecond)
}

func TestTopologyIsAcceptedButIgnored(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"topology","msg_id":3,"topology":{"n0":["n1"],"n1":["n0"],"n2":["n0"]}}}`)
	reply := h.next(t)
	require.Contains(t, reply, `"topology_ok"`)
	require.Contains(t, reply, `"in_reply_to":3`)

	// The ring overlay still decides fan-out: n2 receives the value even
	// though the supplied topology only links n0 to n1.
	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":4,"message":7}}`)
	first := h.next(t)
	second := h.next(t)
	require.Contains(t, first+second, `"dest":"n2"`)
}

func TestReadReturnsObservedValues(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":2,"message":7}}`)
	h.next(t) // fan-out 1
	h.next(t) // fan-out 2
	h.next(t) // broadcast_ok

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"read","msg_id":4}}`)
	reply := h.next(t)
	require.Contains(t, reply, `"read_ok"`)
	require.Contains(t, reply, `"messages":[7]`)
}

func TestDuplicateObservationDoesNotRebroadcast(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":2,"message":7}}`)
	h.next(t) // fan-out 1
	h.next(t) // fan-out 2
	h.next(t) // broadcast_ok

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":3,"message":7}}`)
	ok := h.next(t)
	require.Contains(t, ok, `"broadcast_ok"`)
	require.Contains(t, ok, `"in_reply_to":3`)

	// No second fan-out: the value was already in the batch queue's past,
	// and seen[7] already existed, so observe() is a no-op beyond
	// recording c0 again.
	h.expectNoMoreWithin(t, 30*time.Millisecond)
}

func TestCoverageRetryRebroadcastsUnacknowledgedValue(t *testing.T) {
	h := newHarness(t, testFactory(t))
	initCluster(t, h)

	h.send(t, `{"src":"c0","dest":"n0","body":{"type":"broadcast","msg_id":2,"message":7}}`)
	h.next(t) // fan-out 1
	h.next(t) // fan-out 2
	h.next(t) // broadcast_ok

	// Neither ring peer ever echoes coverage back, so the CheckAck timer
	// armed by observe() should fire and re-broadcast once MaxAckDelay
	// elapses.
	retry1 := h.next(t)
	retry2 := h.next(t)
	require.Contains(t, retry1, `"message":[7]`)
	require.Contains(t, retry2, `"message":[7]`)
}
