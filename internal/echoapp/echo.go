// Package echoapp implements the echo node: reply to every echo request
// with the same text. Grounded on
// original_source/src/bin/echo/{main,message}.rs.
package echoapp

import (
	"encoding/json"
	"time"

	"github.com/melgorithm/gossip-broadcast/internal/actor"
	"github.com/melgorithm/gossip-broadcast/internal/envelope"
	"github.com/melgorithm/gossip-broadcast/internal/node"
)

// TimerKey is unused by this actor — echo never sets a timer — but the
// runner is generic over it, so we need a concrete (empty) type.
type TimerKey struct{}

// Request is the `echo` body.
type Request struct {
	MsgID uint64 `json:"msg_id"`
	Type  string `json:"type"` // "echo"
	Echo  string `json:"echo"`
}

// Response is the `echo_ok` body.
type Response struct {
	InReplyTo uint64 `json:"in_reply_to"`
	Type      string `json:"type"` // "echo_ok"
	Echo      string `json:"echo"`
}

func init() {
	envelope.Register("echo", func(b []byte) (any, error) {
		var v Request
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	envelope.Register("echo_ok", func(b []byte) (any, error) {
		var v Response
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Actor implements actor.Handler[TimerKey].
type Actor struct {
	this *node.ThisNode
}

// New constructs the echo actor. It needs no cluster state beyond its own
// identity (which it doesn't even use, but keeping this matches every
// other actor's constructor shape).
func New(this *node.ThisNode) (actor.Handler[TimerKey], error) {
	return &Actor{this: this}, nil
}

// OnRequest replies to an echo with the same text, and rejects anything
// else (echo_ok arriving here would mean a peer replied to us, which
// never happens in this protocol).
func (a *Actor) OnRequest(in envelope.Inbound, _ time.Time) ([]actor.Action[TimerKey], error) {
	switch body := in.Body.(type) {
	case Request:
		addr := node.Address{Src: in.Src, Dest: in.Dest, MsgID: in.MsgID}
		reply := envelope.Reply(addr, Response{InReplyTo: uint64(in.MsgID), Type: "echo_ok", Echo: body.Echo})
		return []actor.Action[TimerKey]{actor.Send[TimerKey]{Envelope: reply}}, nil
	default:
		return nil, actor.NewProtocolError("unexpected message type %q at echo node", in.Type)
	}
}

// OnTimeout is unreachable: this actor never arms a timer.
func (a *Actor) OnTimeout(_ TimerKey, _ time.Time) ([]actor.Action[TimerKey], error) {
	return nil, actor.NewHandlerError("echo actor received an unexpected timeout")
}
