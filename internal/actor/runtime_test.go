package actor

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/envelope"
	"github.com/melgorithm/gossip-broadcast/internal/ioline"
	"github.com/melgorithm/gossip-broadcast/internal/node"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// noopKey is the timer key type for the trivial handler used by these
// runtime-level tests; it never arms a timer.
type noopKey struct{}

type noopHandler struct{}

func (noopHandler) OnRequest(in envelope.Inbound, _ time.Time) ([]Action[noopKey], error) {
	return nil, nil
}
func (noopHandler) OnTimeout(noopKey, time.Time) ([]Action[noopKey], error) { return nil, nil }

func newTestBridge(in io.Reader, out io.Writer) *ioline.Bridge {
	return ioline.New(in, out, 16, zerolog.Nop(), nil)
}

func TestRunRejectsNonInitFirstMessage(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	bridge := newTestBridge(inR, outW)

	go func() {
		bufio.NewScanner(outR).Scan() // drain, if anything is ever written
	}()

	done := make(chan error, 1)
	go func() {
		done <- Run[noopKey](bridge, zerolog.Nop(), func(this *node.ThisNode) (Handler[noopKey], error) {
			return noopHandler{}, nil
		}, nil)
	}()

	_, err := inW.Write([]byte(`{"src":"c0","dest":"n0","body":{"type":"init_ok","in_reply_to":1}}` + "\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.Error(t, err)
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after a non-init first message")
	}
}

func TestRunSendsInitOkAndExitsCleanlyOnEOF(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	bridge := newTestBridge(inR, outW)

	lines := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(outR)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	done := make(chan error, 1)
	go func() {
		done <- Run[noopKey](bridge, zerolog.Nop(), func(this *node.ThisNode) (Handler[noopKey], error) {
			require.Equal(t, node.ID("n0"), this.NodeID)
			return noopHandler{}, nil
		}, nil)
	}()

	_, err := inW.Write([]byte(`{"src":"c0","dest":"n0","body":{"type":"init","msg_id":1,"node_id":"n0","node_ids":["n0"]}}` + "\n"))
	require.NoError(t, err)

	select {
	case line := <-lines:
		require.Contains(t, line, `"init_ok"`)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive init_ok")
	}

	require.NoError(t, inW.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after stdin EOF")
	}
}
