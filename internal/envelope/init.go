package envelope

import "github.com/melgorithm/gossip-broadcast/internal/node"

// InitRequest is the mandatory first envelope of every connection: the
// harness telling this node who it is and who its peers are.
type InitRequest struct {
	MsgID   uint64    `json:"msg_id"`
	Type    string    `json:"type"` // "init"
	NodeID  node.ID   `json:"node_id"`
	NodeIDs []node.ID `json:"node_ids"`
}

// InitOk is the reply to InitRequest.
type InitOk struct {
	InReplyTo uint64 `json:"in_reply_to"`
	Type      string `json:"type"` // "init_ok"
}

// NewInitOk builds the body for an init_ok reply.
func NewInitOk(inReplyTo node.MessageID) InitOk {
	return InitOk{InReplyTo: uint64(inReplyTo), Type: "init_ok"}
}
