package rmw

import (
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
)

func newTestServerCore(t *testing.T) *serverCore {
	t.Helper()
	return &serverCore{
		node:    newTestNode(t),
		service: "/add_two_ints",
		gid:     newGID(),
		logger:  slog.Default(),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func TestServerDeliverAndTake(t *testing.T) {
	core := newTestServerCore(t)
	srv := &Server[*stringMsg, *stringMsg]{core: core}

	gid := newGID()
	core.deliver(&nats.Msg{
		Data:   samplePayload(t, "request"),
		Header: sampleHeader(3, gid),
		Reply:  "_INBOX.reply",
	})

	assert.True(t, srv.hasPending())
	req, ok, err := srv.TakeRequest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "request", req.Request.Data)
	assert.Equal(t, int64(3), req.Info.SequenceNumber)
	assert.Equal(t, gid, req.Info.PublisherGID)
	assert.Equal(t, "_INBOX.reply", req.reply)

	_, ok, err = srv.TakeRequest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServerDropsMalformedRequests(t *testing.T) {
	core := newTestServerCore(t)

	// No reply subject.
	core.deliver(&nats.Msg{
		Data:   samplePayload(t, "no reply"),
		Header: sampleHeader(1, newGID()),
	})
	// No attachment.
	core.deliver(&nats.Msg{
		Data:  samplePayload(t, "no attachment"),
		Reply: "_INBOX.reply",
	})

	assert.False(t, core.hasPending())
}

func TestServiceRequestSingleResponse(t *testing.T) {
	core := newTestServerCore(t)
	req := &ServiceRequest[*stringMsg, *stringMsg]{
		Request: &stringMsg{Data: "ping"},
		Info:    message.MessageInfo{SequenceNumber: 1, PublisherGID: newGID()},
		server:  core,
		reply:   "_INBOX.reply",
	}

	// The transport is not connected, so the first Send fails at the
	// publish step, but the request is still consumed.
	err := req.Send(&stringMsg{Data: "pong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConnection))

	err = req.Send(&stringMsg{Data: "pong again"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyResponded))
}

func TestNodeServiceNameConflict(t *testing.T) {
	n := newTestNode(t)

	require.NoError(t, n.registerServiceName("0/add_two_ints/T/hash"))
	err := n.registerServiceName("0/add_two_ints/T/hash")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNameConflict))

	// Different expression and the client table are independent.
	require.NoError(t, n.registerServiceName("0/other/T/hash"))
	require.NoError(t, n.registerClientName("0/add_two_ints/T/hash"))
	err = n.registerClientName("0/add_two_ints/T/hash")
	assert.True(t, errors.Is(err, errors.ErrNameConflict))

	// Releasing the name allows re-registration.
	n.unregisterServiceName("0/add_two_ints/T/hash")
	require.NoError(t, n.registerServiceName("0/add_two_ints/T/hash"))
}

func TestServerClosedTakeRequest(t *testing.T) {
	core := newTestServerCore(t)
	srv := &Server[*stringMsg, *stringMsg]{core: core}
	core.closed = true

	_, _, err := srv.TakeRequest()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClosed))
}
