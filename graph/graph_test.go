package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

func gidN(n byte) message.GID {
	var g message.GID
	g[0] = n
	return g
}

func TestParseTokenNode(t *testing.T) {
	e, err := ParseToken("@ros2_lv/2/aac3178e/0/0/NN/%/%/listener", gidN(1))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), e.DomainID)
	assert.Equal(t, "aac3178e", e.SessionID)
	assert.Equal(t, uint32(0), e.NodeID)
	assert.Equal(t, keyexpr.EntityNode, e.Kind)
	assert.Equal(t, "", e.Enclave)
	assert.Equal(t, "", e.Namespace)
	assert.Equal(t, "listener", e.NodeName)
}

func TestParseTokenEndpoint(t *testing.T) {
	token := keyexpr.LivelinessEntity(0, "s1", 0, 10, keyexpr.EntityPublisher,
		"", "/ns", "talker", "/ns/chatter", "std_msgs::msg::dds_::String_", "RIHS01_ab", qos.Default())
	e, err := ParseToken(token, gidN(2))
	require.NoError(t, err)
	assert.Equal(t, keyexpr.EntityPublisher, e.Kind)
	assert.Equal(t, uint32(10), e.EntityID)
	assert.Equal(t, "/ns", e.Namespace)
	assert.Equal(t, "/ns/chatter", e.FQName)
	assert.Equal(t, "std_msgs::msg::dds_::String_", e.TypeName)
	assert.Equal(t, "RIHS01_ab", e.TypeHash)
	assert.Equal(t, qos.Default(), e.QoS)
}

func TestParseTokenRejectsMalformed(t *testing.T) {
	for _, token := range []string{
		"",
		"not/a/token",
		"@ros2_lv/x/s/0/0/NN/%/%/n",
		"@ros2_lv/0/s/0/0/ZZ/%/%/n",
		"@ros2_lv/0/s/0/0/NN/%/%/n/extra",
		"@ros2_lv/0/s/0/10/MP/%/%/n/%t/T/H",
		"@ros2_lv/0/s/0/10/MP/%/%/n/%t/T/H/garbage",
	} {
		_, err := ParseToken(token, gidN(1))
		assert.Error(t, err, "token %q", token)
	}
}

func TestCacheAliveDropped(t *testing.T) {
	c := NewCache(nil)
	tok := keyexpr.LivelinessNode(0, "s1", 0, "", "", "talker")

	c.Alive(gidN(1), tok)
	assert.Equal(t, 1, c.Len())

	// Second alive for the same gid replaces, never duplicates.
	c.Alive(gidN(1), tok)
	assert.Equal(t, 1, c.Len())

	c.Dropped(gidN(1))
	assert.Equal(t, 0, c.Len())

	// Dropping an unknown gid is a no-op.
	c.Dropped(gidN(1))
	assert.Equal(t, 0, c.Len())
}

func TestCacheIgnoresMalformedTokens(t *testing.T) {
	c := NewCache(nil)
	c.Alive(gidN(1), "some/foreign/subject")
	assert.Equal(t, 0, c.Len())
}

func TestCacheQueries(t *testing.T) {
	c := NewCache(nil)
	c.Alive(gidN(1), keyexpr.LivelinessNode(0, "s1", 0, "", "", "talker"))
	c.Alive(gidN(2), keyexpr.LivelinessEntity(0, "s1", 0, 10, keyexpr.EntityPublisher,
		"", "", "talker", "/chatter", "std_msgs::msg::dds_::String_", "H1", qos.Default()))
	c.Alive(gidN(3), keyexpr.LivelinessNode(0, "s2", 0, "", "/ns", "listener"))
	c.Alive(gidN(4), keyexpr.LivelinessEntity(0, "s2", 0, 10, keyexpr.EntitySubscriber,
		"", "/ns", "listener", "/chatter", "std_msgs::msg::dds_::String_", "H1", qos.SensorData()))
	c.Alive(gidN(5), keyexpr.LivelinessEntity(0, "s2", 0, 11, keyexpr.EntityServiceServer,
		"", "/ns", "listener", "/add_two_ints", "example_interfaces::srv::dds_::AddTwoInts_", "H2", qos.ServicesDefault()))

	nodes := c.NodeNames()
	require.Len(t, nodes, 2)
	assert.Equal(t, NodeNameInfo{Name: "talker"}, nodes[0])
	assert.Equal(t, NodeNameInfo{Name: "listener", Namespace: "/ns"}, nodes[1])

	assert.Equal(t, 1, c.CountPublishers("/chatter"))
	assert.Equal(t, 1, c.CountSubscribers("/chatter"))
	assert.Equal(t, 0, c.CountPublishers("/other"))

	topics := c.TopicNamesAndTypes()
	assert.Equal(t, []string{"std_msgs::msg::dds_::String_"}, topics["/chatter"])
	assert.NotContains(t, topics, "/add_two_ints")

	pubs := c.PublishersInfo("/chatter")
	require.Len(t, pubs, 1)
	assert.Equal(t, "talker", pubs[0].NodeName)
	assert.Equal(t, gidN(2), pubs[0].GID)

	assert.True(t, c.IsServiceAvailable("/add_two_ints", ""))
	assert.True(t, c.IsServiceAvailable("/add_two_ints", "example_interfaces::srv::dds_::AddTwoInts_"))
	assert.False(t, c.IsServiceAvailable("/add_two_ints", "other::srv::dds_::T_"))
	assert.False(t, c.IsServiceAvailable("/missing", ""))

	c.Dropped(gidN(5))
	assert.False(t, c.IsServiceAvailable("/add_two_ints", ""))
}

func TestCacheOnChange(t *testing.T) {
	c := NewCache(nil)
	var events []Change
	c.OnChange(func(ch Change) { events = append(events, ch) })

	c.Alive(gidN(1), keyexpr.LivelinessNode(0, "s1", 0, "", "", "talker"))
	c.Dropped(gidN(1))
	c.Dropped(gidN(1)) // unknown, no event

	require.Len(t, events, 2)
	assert.Equal(t, ChangeAlive, events[0].Kind)
	assert.Equal(t, "talker", events[0].Entity.NodeName)
	assert.Equal(t, ChangeDropped, events[1].Kind)
}

func TestCacheWatch(t *testing.T) {
	c := NewCache(nil)
	ch := c.Watch()

	c.Alive(gidN(1), keyexpr.LivelinessNode(0, "s1", 0, "", "", "talker"))
	c.Dropped(gidN(1))

	ev := <-ch
	assert.Equal(t, ChangeAlive, ev.Kind)
	assert.Equal(t, "talker", ev.Entity.NodeName)
	ev = <-ch
	assert.Equal(t, ChangeDropped, ev.Kind)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected change: %+v", ev)
	default:
	}
}

func TestCacheObserverAddedDuringNotify(t *testing.T) {
	c := NewCache(nil)
	var first, second int
	c.OnChange(func(Change) {
		first++
		if first == 1 {
			c.OnChange(func(Change) { second++ })
		}
	})

	c.Alive(gidN(1), keyexpr.LivelinessNode(0, "s1", 0, "", "", "talker"))
	c.Dropped(gidN(1))

	// The observer registered mid-notification sees only the next
	// change, and registering it must not deadlock the cache.
	assert.Equal(t, 2, first)
	assert.Equal(t, 1, second)
}
