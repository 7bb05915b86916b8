package rmw

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
)

func newTestClient(t *testing.T) *Client[*stringMsg, *stringMsg] {
	t.Helper()
	return &Client[*stringMsg, *stringMsg]{
		node:    newTestNode(t),
		service: "/add_two_ints",
		gid:     newGID(),
		done:    make(chan struct{}),
	}
}

func replyHeader(att message.Attachment) nats.Header {
	h := nats.Header{}
	h.Set(AttachmentHeader, hex.EncodeToString(att.Encode()))
	return h
}

func TestClientCorrelatesReplies(t *testing.T) {
	c := newTestClient(t)

	good := message.Attachment{
		SequenceNumber:    7,
		SourceTimestampNS: time.Now().UnixNano(),
		SourceGID:         c.gid,
	}
	att, err := c.correlateReply(replyHeader(good), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), att.SequenceNumber)
	assert.Equal(t, c.gid, att.SourceGID)

	// Reply echoing another call's sequence number.
	_, err = c.correlateReply(replyHeader(good), 8)
	assert.True(t, errors.Is(err, errors.ErrInvalidAttachment))

	// Reply addressed to a different caller.
	foreign := good
	foreign.SourceGID = newGID()
	_, err = c.correlateReply(replyHeader(foreign), 7)
	assert.True(t, errors.Is(err, errors.ErrInvalidAttachment))

	// Reply with no attachment at all.
	_, err = c.correlateReply(nats.Header{}, 7)
	assert.True(t, errors.Is(err, errors.ErrInvalidAttachment))
}

func TestClientCallCanceledContext(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Call(ctx, &stringMsg{Data: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, errors.ErrTimeout))
}

func TestClientCallExpiredDeadline(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	_, err := c.Call(ctx, &stringMsg{Data: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}
