package rmw

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/qos"
)

// Integration tests need a reachable NATS server with JetStream
// enabled. Set OXIDROS_TEST_NATS_URL to run them.
func integrationContext(t *testing.T) *Context {
	t.Helper()
	url := os.Getenv("OXIDROS_TEST_NATS_URL")
	if url == "" {
		t.Skip("OXIDROS_TEST_NATS_URL not set")
	}
	ctx, err := NewContext(
		WithTransportURL(url),
		WithDomainID(77),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Shutdown() })
	return ctx
}

func TestIntegrationPubSubRoundTrip(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("roundtrip", "")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	sub, err := NewSubscriber[*stringMsg](node, "chatter", nil)
	require.NoError(t, err)

	pub, err := NewPublisher[*stringMsg](node, "chatter", nil)
	require.NoError(t, err)

	require.NoError(t, pub.Send(&stringMsg{Data: "hello"}))

	recvCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, info, err := sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Data)
	assert.Equal(t, int64(1), info.SequenceNumber)
	assert.Equal(t, pub.GID(), info.PublisherGID)
}

func TestIntegrationTransientLocalLateJoin(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("late_joiner", "")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	profile := qos.TransientLocal()
	profile.Depth = 5
	pub, err := NewPublisher[*stringMsg](node, "cached_topic", &profile)
	require.NoError(t, err)

	require.NoError(t, pub.Send(&stringMsg{Data: "first"}))
	require.NoError(t, pub.Send(&stringMsg{Data: "second"}))

	// The subscriber is created after both sends and must replay them
	// in original order.
	sub, err := NewSubscriber[*stringMsg](node, "cached_topic", &profile)
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, _, err := sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Data)
	msg, _, err = sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Data)
}

func TestIntegrationServiceCall(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("calc", "")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	svcType := ServiceType{Name: "test::srv::dds_::Echo_", Hash: "testhash"}
	server, err := NewServer[*stringMsg, *stringMsg](node, "/echo", svcType, nil)
	require.NoError(t, err)

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := server.Recv(reqCtx)
		if err != nil {
			return
		}
		_ = req.Send(&stringMsg{Data: "echo: " + req.Request.Data})
	}()

	client, err := NewClient[*stringMsg, *stringMsg](node, "/echo", svcType, nil)
	require.NoError(t, err)

	res, err := client.CallWithTimeout(5*time.Second, &stringMsg{Data: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", res.Data)
}

func TestIntegrationGraphDiscovery(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("discoverable", "/fleet")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	_, err = NewPublisher[*stringMsg](node, "status", nil)
	require.NoError(t, err)

	// The cache fills from the KV watcher asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ctx.GraphCache().CountPublishers("/fleet/status") > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Equal(t, 1, ctx.GraphCache().CountPublishers("/fleet/status"))

	found := false
	for _, info := range ctx.GraphCache().NodeNames() {
		if info.Name == "discoverable" && info.Namespace == "/fleet" {
			found = true
		}
	}
	assert.True(t, found, "node should be discoverable on the graph")

	status := ctx.Health()
	assert.True(t, status.Healthy())
}

func TestIntegrationParameterServices(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("param_node", "")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	ps, err := node.CreateParameterServer()
	require.NoError(t, err)
	defer func() { _ = ps.Close() }()
	ps.Params().Declare("rate", IntegerValueOf(10), Descriptor{})

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if ok, _ := ps.TryProcessOnce(); ok {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	client, err := NewClient[*GetParametersRequest, *GetParametersResponse](
		node, "/param_node/get_parameters", GetParametersType, nil)
	require.NoError(t, err)

	res, err := client.CallWithTimeout(5*time.Second, &GetParametersRequest{Names: []string{"rate"}})
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.Equal(t, int64(10), res.Values[0].IntegerValue)
}

func TestIntegrationVolatileExcludesPriorSamples(t *testing.T) {
	ctx := integrationContext(t)

	node, err := ctx.CreateNode("volatile_late", "")
	require.NoError(t, err)
	defer func() { _ = node.Close() }()

	pub, err := NewPublisher[*stringMsg](node, "ephemeral", nil)
	require.NoError(t, err)
	require.NoError(t, pub.Send(&stringMsg{Data: "before"}))

	sub, err := NewSubscriber[*stringMsg](node, "ephemeral", nil)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, _, ok, err := sub.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok, "volatile subscriber must not see samples published before it existed")

	require.NoError(t, pub.Send(&stringMsg{Data: "after"}))
	recvCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, _, err := sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "after", msg.Data)
}
