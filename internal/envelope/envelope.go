// Package envelope implements the wire codec: the outer {src, dest, body}
// JSON object, the msg_id/in_reply_to request-vs-reply discriminator, and
// a registry letting each application package (echo, uniqueid, broadcast)
// plug in its own typed body variants without this package importing them.
//
// Grounded on original_source/src/common/message.rs (generic envelope +
// discriminated body) and the registry idiom is this package's own take on
// the same "register your codec" pattern the standard library uses for
// image formats and sql drivers — a natural fit given the domain packages
// must stay independent of each other and of this one.
package envelope

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/melgorithm/gossip-broadcast/internal/node"
)

// CodecError marks malformed JSON or an unrecognized body "type" tag.
// Per the spec these are always fatal.
type CodecError struct {
	msg string
	err error
}

func (e *CodecError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("envelope: %s: %v", e.msg, e.err)
	}
	return "envelope: " + e.msg
}

func (e *CodecError) Unwrap() error { return e.err }

func newCodecError(msg string, err error) error {
	return &CodecError{msg: msg, err: err}
}

// Decoder turns the raw `body` object of an envelope into a typed value.
// It receives the entire body (not just the payload fields) so it can
// unmarshal msg_id/in_reply_to/type and payload fields in one shot into
// its own struct.
type Decoder func(body []byte) (any, error)

var registry = map[string]Decoder{}

// Register associates a body "type" tag with a decoder. Application
// packages call this from an init() func, e.g.
//
//	func init() { envelope.Register("echo", decodeEchoRequest) }
//
// Re-registering an existing tag panics — that's a programming error
// (two packages fighting over one tag), not a runtime condition.
func Register(typeTag string, dec Decoder) {
	if _, exists := registry[typeTag]; exists {
		panic("envelope: type tag already registered: " + typeTag)
	}
	registry[typeTag] = dec
}

func init() {
	Register("init", func(b []byte) (any, error) {
		var v InitRequest
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	Register("init_ok", func(b []byte) (any, error) {
		var v InitOk
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Envelope is the outer JSON object. Encoding relies on Go's guarantee
// that struct fields are marshaled in declaration order: Body holds a
// concrete struct (never a map) whose fields are already declared
// msg_id-or-in_reply_to, then type, then payload, so no custom
// MarshalJSON is needed here — just correctly-shaped body types.
type Envelope struct {
	Src  node.ID `json:"src"`
	Dest node.ID `json:"dest"`
	Body any     `json:"body"`
}

// Inbound is a decoded envelope, with the request/reply discriminator
// resolved and the body handed back as whatever concrete type its
// Decoder produced.
type Inbound struct {
	Src       node.ID
	Dest      node.ID
	IsRequest bool
	MsgID     node.MessageID // valid when IsRequest
	InReplyTo node.MessageID // valid when !IsRequest
	Type      string
	Body      any
}

type wireEnvelope struct {
	Src  node.ID         `json:"src"`
	Dest node.ID         `json:"dest"`
	Body json.RawMessage `json:"body"`
}

type wireHeader struct {
	MsgID     *uint64 `json:"msg_id"`
	InReplyTo *uint64 `json:"in_reply_to"`
	Type      string  `json:"type"`
}

// Decode parses one line of input into an Inbound envelope. Unknown
// `type` tags and malformed JSON both fail as *CodecError.
func Decode(line []byte) (Inbound, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(line, &wire); err != nil {
		return Inbound{}, newCodecError("malformed envelope", err)
	}

	var hdr wireHeader
	if err := json.Unmarshal(wire.Body, &hdr); err != nil {
		return Inbound{}, newCodecError("malformed body header", err)
	}

	if (hdr.MsgID == nil) == (hdr.InReplyTo == nil) {
		return Inbound{}, newCodecError(
			fmt.Sprintf("body must carry exactly one of msg_id/in_reply_to (type=%q)", hdr.Type), nil)
	}

	dec, ok := registry[hdr.Type]
	if !ok {
		return Inbound{}, newCodecError(fmt.Sprintf("unknown body type %q", hdr.Type), nil)
	}

	body, err := dec(wire.Body)
	if err != nil {
		return Inbound{}, newCodecError(fmt.Sprintf("malformed %q body", hdr.Type), err)
	}

	in := Inbound{
		Src:  wire.Src,
		Dest: wire.Dest,
		Type: hdr.Type,
		Body: body,
	}
	if hdr.MsgID != nil {
		in.IsRequest = true
		in.MsgID = node.MessageID(*hdr.MsgID)
	} else {
		in.InReplyTo = node.MessageID(*hdr.InReplyTo)
	}
	return in, nil
}

// Encode serializes an outbound envelope to a single line (no trailing
// newline — internal/ioline adds that).
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, newCodecError("failed to encode envelope", err)
	}
	return b, nil
}

// TypeTag extracts the wire "type" tag from a body value for metrics
// labeling, the same field Decode reads off the wire via wireHeader. Every
// registered body struct declares an exported Type string field; a body
// that doesn't is a registration bug, not a runtime condition, so this
// returns "" rather than panicking.
func TypeTag(body any) string {
	v := reflect.ValueOf(body)
	if v.Kind() != reflect.Struct {
		return ""
	}
	f := v.FieldByName("Type")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// Reply builds the envelope for a reply to addr, with src/dest swapped
// relative to the original request, per the spec's reply-address rule.
func Reply(addr node.Address, body any) Envelope {
	return Envelope{Src: addr.Dest, Dest: addr.Src, Body: body}
}

// Send builds the envelope for a new outbound request from addr.
func Send(addr node.Address, body any) Envelope {
	return Envelope{Src: addr.Src, Dest: addr.Dest, Body: body}
}
