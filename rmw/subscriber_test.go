package rmw

import (
	"context"
	"encoding/hex"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
)

func newQueuedSubscriber(t *testing.T, depth int) *Subscriber[*stringMsg] {
	t.Helper()
	return &Subscriber[*stringMsg]{
		node:   newTestNode(t),
		topic:  "/chatter",
		gid:    newGID(),
		depth:  depth,
		logger: slog.Default(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func sampleHeader(seq int64, gid message.GID) nats.Header {
	att := message.Attachment{
		SequenceNumber:    seq,
		SourceTimestampNS: time.Now().UnixNano(),
		SourceGID:         gid,
	}
	h := nats.Header{}
	h.Set(AttachmentHeader, hex.EncodeToString(att.Encode()))
	return h
}

func samplePayload(t *testing.T, text string) []byte {
	t.Helper()
	data, err := (&stringMsg{Data: text}).Marshal()
	require.NoError(t, err)
	return data
}

func TestSubscriberTryRecvEmpty(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)
	_, _, ok, err := sub.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscriberDeliverAndRecv(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)
	gid := newGID()
	sub.deliver(samplePayload(t, "hello"), sampleHeader(7, gid))

	msg, info, ok, err := sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Data)
	assert.Equal(t, int64(7), info.SequenceNumber)
	assert.Equal(t, gid, info.PublisherGID)
}

func TestSubscriberDropsOverflow(t *testing.T) {
	sub := newQueuedSubscriber(t, 2)
	gid := newGID()
	sub.deliver(samplePayload(t, "one"), sampleHeader(1, gid))
	sub.deliver(samplePayload(t, "two"), sampleHeader(2, gid))
	// The queue is at depth, so this sample is dropped.
	sub.deliver(samplePayload(t, "three"), sampleHeader(3, gid))

	msg, _, ok, err := sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", msg.Data)

	msg, _, ok, err = sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", msg.Data)

	_, _, ok, err = sub.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)

	// Space freed by draining accepts new samples again.
	sub.deliver(samplePayload(t, "four"), sampleHeader(4, gid))
	msg, _, ok, err = sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "four", msg.Data)
}

func TestSubscriberBadAttachmentDropped(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)

	sub.deliver(samplePayload(t, "no header"), nats.Header{})

	bad := nats.Header{}
	bad.Set(AttachmentHeader, "not-hex")
	sub.deliver(samplePayload(t, "bad hex"), bad)

	short := nats.Header{}
	short.Set(AttachmentHeader, hex.EncodeToString([]byte{1, 2, 3}))
	sub.deliver(samplePayload(t, "short"), short)

	_, _, ok, err := sub.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscriberRecvBlocksUntilDeliver(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)
	gid := newGID()
	go func() {
		time.Sleep(10 * time.Millisecond)
		sub.deliver(samplePayload(t, "late"), sampleHeader(1, gid))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, _, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", msg.Data)
}

func TestSubscriberRecvContextExpires(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := sub.Recv(ctx)
	require.Error(t, err)
}

func TestSubscriberClosedDrainsThenErrClosed(t *testing.T) {
	sub := newQueuedSubscriber(t, 3)
	gid := newGID()
	sub.deliver(samplePayload(t, "pending"), sampleHeader(1, gid))

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
	close(sub.done)

	msg, _, ok, err := sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pending", msg.Data)

	_, _, _, err = sub.TryRecv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClosed))

	// New samples are rejected after close.
	sub.deliver(samplePayload(t, "ignored"), sampleHeader(2, gid))
	_, _, _, err = sub.TryRecv()
	assert.True(t, errors.Is(err, errors.ErrClosed))
}
