package envelope

import (
	"testing"

	"github.com/melgorithm/gossip-broadcast/internal/node"
	"github.com/stretchr/testify/require"
)

func TestDecodeInitRequest(t *testing.T) {
	line := []byte(`{"src":"c0","dest":"n0","body":{"type":"init","msg_id":1,"node_id":"n0","node_ids":["n0","n1"]}}`)

	in, err := Decode(line)
	require.NoError(t, err)
	require.True(t, in.IsRequest)
	require.Equal(t, node.MessageID(1), in.MsgID)
	require.Equal(t, "init", in.Type)

	req, ok := in.Body.(InitRequest)
	require.True(t, ok)
	require.Equal(t, node.ID("n0"), req.NodeID)
	require.Equal(t, []node.ID{"n0", "n1"}, req.NodeIDs)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	line := []byte(`{"src":"c0","dest":"n0","body":{"type":"nonsense","msg_id":1}}`)

	_, err := Decode(line)
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
}

func TestDecodeRejectsBothMsgIDAndInReplyTo(t *testing.T) {
	line := []byte(`{"src":"c0","dest":"n0","body":{"type":"init_ok","msg_id":1,"in_reply_to":1}}`)

	_, err := Decode(line)
	require.Error(t, err)
}

func TestDecodeRejectsNeitherMsgIDNorInReplyTo(t *testing.T) {
	line := []byte(`{"src":"c0","dest":"n0","body":{"type":"init_ok"}}`)

	_, err := Decode(line)
	require.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	env := Envelope{
		Src:  "n0",
		Dest: "c0",
		Body: InitOk{InReplyTo: 1, Type: "init_ok"},
	}

	line, err := Encode(env)
	require.NoError(t, err)

	in, err := Decode(line)
	require.NoError(t, err)
	require.False(t, in.IsRequest)
	require.Equal(t, node.MessageID(1), in.InReplyTo)
	require.Equal(t, "init_ok", in.Type)
}

func TestReplySwapsSrcAndDest(t *testing.T) {
	addr := node.Address{Src: "c0", Dest: "n0", MsgID: 5}
	env := Reply(addr, NewInitOk(5))

	require.Equal(t, node.ID("n0"), env.Src)
	require.Equal(t, node.ID("c0"), env.Dest)
}

func TestSendKeepsSrcAndDest(t *testing.T) {
	addr := node.Address{Src: "n0", Dest: "n1", MsgID: 5}
	env := Send(addr, NewInitOk(5))

	require.Equal(t, node.ID("n0"), env.Src)
	require.Equal(t, node.ID("n1"), env.Dest)
}
