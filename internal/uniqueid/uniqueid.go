// Package uniqueid implements the unique-id node: every `generate`
// request gets a fresh, cluster-unique id formed from this node's id and
// a local counter. Grounded on
// original_source/src/bin/unique_id/{main,message}.rs.
package uniqueid

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/actor"
	"github.com/melgorithm/gossip-broadcast/internal/envelope"
	"github.com/melgorithm/gossip-broadcast/internal/node"
)

// TimerKey is unused — this actor never arms a timer.
type TimerKey struct{}

// Request is the `generate` body; it carries no payload fields.
type Request struct {
	MsgID uint64 `json:"msg_id"`
	Type  string `json:"type"` // "generate"
}

// Response is the `generate_ok` body.
type Response struct {
	InReplyTo uint64 `json:"in_reply_to"`
	Type      string `json:"type"` // "generate_ok"
	ID        string `json:"id"`
}

func init() {
	envelope.Register("generate", func(b []byte) (any, error) {
		var v Request
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	envelope.Register("generate_ok", func(b []byte) (any, error) {
		var v Response
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Actor implements actor.Handler[TimerKey].
type Actor struct {
	this    *node.ThisNode
	counter uint64
}

// New constructs the unique-id actor with a counter starting at 0 — the
// first generated id is "<node_id>_0", matching the original's format.
func New(this *node.ThisNode) (actor.Handler[TimerKey], error) {
	return &Actor{this: this}, nil
}

// OnRequest allocates the next id for a `generate` request.
func (a *Actor) OnRequest(in envelope.Inbound, _ time.Time) ([]actor.Action[TimerKey], error) {
	switch in.Body.(type) {
	case Request:
		id := fmt.Sprintf("%s_%d", a.this.NodeID, a.counter)
		a.counter++
		addr := node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}
		reply := envelope.Reply(addr, Response{InReplyTo: uint64(in.MsgID), Type: "generate_ok", ID: id})
		return []actor.Action[TimerKey]{actor.Send[TimerKey]{Envelope: reply}}, nil
	default:
		return nil, actor.NewProtocolError("unexpected message type %q at unique-id node", in.Type)
	}
}

// OnTimeout is unreachable: this actor never arms a timer.
func (a *Actor) OnTimeout(_ TimerKey, _ time.Time) ([]actor.Action[TimerKey], error) {
	return nil, actor.NewHandlerError("unique-id actor received an unexpected timeout")
}
