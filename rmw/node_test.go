package rmw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/errors"
)

func TestNodeExpandAndRemapName(t *testing.T) {
	n := newTestNode(t)

	fq, err := n.ExpandAndRemapName("chatter")
	require.NoError(t, err)
	assert.Equal(t, "/chatter", fq)

	fq, err = n.ExpandAndRemapName("~/status")
	require.NoError(t, err)
	assert.Equal(t, "/test_node/status", fq)

	fq, err = n.ExpandAndRemapName("/absolute/topic")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/topic", fq)

	_, err = n.ExpandAndRemapName("bad//topic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidName))
}

func TestNodeExpandAndRemapNameWithRemap(t *testing.T) {
	n := newTestNode(t)
	n.ctx.args = &config.Args{RemapRules: []config.RemapRule{
		{From: "chatter", To: "conversation"},
		{NodeName: "test_node", From: "scan", To: "lidar/scan"},
	}}

	fq, err := n.ExpandAndRemapName("chatter")
	require.NoError(t, err)
	assert.Equal(t, "/conversation", fq)

	fq, err = n.ExpandAndRemapName("scan")
	require.NoError(t, err)
	assert.Equal(t, "/lidar/scan", fq)

	fq, err = n.ExpandAndRemapName("other")
	require.NoError(t, err)
	assert.Equal(t, "/other", fq)
}

func TestNodeEntityIDAllocation(t *testing.T) {
	n := newTestNode(t)
	assert.Equal(t, uint32(10), n.nextEntityID())
	assert.Equal(t, uint32(11), n.nextEntityID())
	assert.Equal(t, uint32(12), n.nextEntityID())
}

func TestActionStubsNotImplemented(t *testing.T) {
	n := newTestNode(t)

	_, err := NewActionClient(n, "fibonacci")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))

	_, err = NewActionServer(n, "fibonacci")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))

	_, err = n.CreateActionClient("fibonacci")
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
	_, err = n.CreateActionServer("fibonacci")
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
}
