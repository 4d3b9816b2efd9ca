// Package ioline bridges the actor runtime to the process's standard
// streams: a background goroutine drains stdin into a bounded queue so
// the event loop can read with a timeout instead of blocking forever,
// and writes to stdout are serialized through a single caller.
//
// Grounded on the producer-thread/channel split in
// original_source/src/common/console.rs, expressed with the
// goroutine+channel+panic-recovery idiom the teacher uses for its worker
// pool (worker_pool.go).
package ioline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Read once the stdin producer has terminated
// (EOF or a read error) and the queue has been drained.
var ErrClosed = errors.New("ioline: input closed")

// Metrics is the narrow surface the bridge needs from whatever
// observability backend is wired in. Declared here, not in
// internal/metrics, so this package never imports Prometheus directly —
// internal/metrics.Collector satisfies it.
type Metrics interface {
	ObserveLineDropped()
}

type noopMetrics struct{}

func (noopMetrics) ObserveLineDropped() {}

// Bridge owns the stdin-reader goroutine and the stdout writer lock.
type Bridge struct {
	lines  chan string
	closed chan struct{}
	err    error
	errMu  sync.Mutex

	out   io.Writer
	outMu sync.Mutex

	logger  zerolog.Logger
	metrics Metrics
}

// New starts the background stdin reader and returns a Bridge that reads
// lines from in and writes lines to out. queueSize bounds how many
// unconsumed lines may accumulate before the reader blocks (backpressure
// on the producer side, not data loss). A nil metrics disables
// instrumentation rather than requiring every caller to supply a
// collector.
func New(in io.Reader, out io.Writer, queueSize int, logger zerolog.Logger, metrics Metrics) *Bridge {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	b := &Bridge{
		lines:   make(chan string, queueSize),
		closed:  make(chan struct{}),
		out:     out,
		logger:  logger,
		metrics: metrics,
	}
	go b.readLoop(in)
	return b
}

func (b *Bridge) readLoop(in io.Reader) {
	defer close(b.closed)
	defer func() {
		if r := recover(); r != nil {
			b.setErr(fmt.Errorf("ioline: reader panic: %v\n%s", r, debug.Stack()))
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			b.metrics.ObserveLineDropped()
			continue
		}
		b.lines <- line
	}
	if err := scanner.Err(); err != nil {
		b.setErr(fmt.Errorf("ioline: stdin read error: %w", err))
	}
}

func (b *Bridge) setErr(err error) {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

// Read waits up to timeout for the next line. It returns ("", false, nil)
// on timeout, (line, true, nil) on success, and ("", false, err) once the
// producer has terminated (EOF surfaces as ErrClosed).
func (b *Bridge) Read(timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-b.lines:
		if !ok {
			return "", false, b.closedErr()
		}
		return line, true, nil
	case <-timer.C:
		return "", false, nil
	case <-b.closed:
		// Drain anything the producer already queued before reporting closed.
		select {
		case line, ok := <-b.lines:
			if ok {
				return line, true, nil
			}
		default:
		}
		return "", false, b.closedErr()
	}
}

// ReadBlocking waits, with no timeout, for the next line. Used once, by
// the init handshake, before the event loop's timer-driven reads begin.
func (b *Bridge) ReadBlocking() (string, error) {
	select {
	case line, ok := <-b.lines:
		if !ok {
			return "", b.closedErr()
		}
		return line, nil
	case <-b.closed:
		select {
		case line, ok := <-b.lines:
			if ok {
				return line, nil
			}
		default:
		}
		return "", b.closedErr()
	}
}

func (b *Bridge) closedErr() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err != nil {
		return b.err
	}
	return ErrClosed
}

// Write encodes nothing itself — callers pass an already-encoded line —
// and emits it followed by a newline under an exclusive lock so
// concurrent writers (there is normally only the event-loop thread) never
// interleave output.
func (b *Bridge) Write(line []byte) error {
	b.outMu.Lock()
	defer b.outMu.Unlock()

	if _, err := b.out.Write(line); err != nil {
		return fmt.Errorf("ioline: write error: %w", err)
	}
	if _, err := b.out.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("ioline: write error: %w", err)
	}
	return nil
}
