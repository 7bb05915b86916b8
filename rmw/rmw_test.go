package rmw

import (
	"log/slog"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/metric"
	"github.com/jazi007/oxidros/natsclient"
)

// stringMsg is a minimal JSON message used across the package tests.
type stringMsg struct {
	Data string `json:"data"`
}

func (*stringMsg) TypeName() string { return "std_msgs::msg::dds_::String_" }
func (*stringMsg) TypeHash() string {
	return "RIHS01_df668c740482bbd48fb39d76a70dfd4bd59db1288021743503259e948f6b1a18"
}
func (m *stringMsg) Marshal() ([]byte, error)    { return message.MarshalJSON(m) }
func (m *stringMsg) Unmarshal(data []byte) error { return message.UnmarshalJSON(data, m) }

// newTestNode builds a node wired to an unconnected transport client.
// Transport operations fail with ErrConnection, which is enough for
// exercising queueing, correlation, and registration logic offline.
func newTestNode(t interface{ Fatalf(string, ...any) }) *Node {
	client, err := natsclient.New(DefaultTransportURL)
	if err != nil {
		t.Fatalf("natsclient.New: %v", err)
	}
	ctx := &Context{
		sessionID: "test-session",
		args:      &config.Args{},
		client:    client,
		metrics:   metric.NewRegistry(),
		logger:    slog.Default(),
	}
	return &Node{
		ctx:          ctx,
		originalName: "test_node",
		name:         "test_node",
		namespace:    "/",
		fqn:          "/test_node",
		gid:          newGID(),
		logger:       slog.Default(),
		serviceNames: make(map[string]struct{}),
		clientNames:  make(map[string]struct{}),
		endpoints:    make(map[closer]struct{}),
	}
}

// The concrete endpoint types must satisfy the backend capability
// interfaces.
var (
	_ MessageSender[*stringMsg]                = (*Publisher[*stringMsg])(nil)
	_ MessageReceiver[*stringMsg]              = (*Subscriber[*stringMsg])(nil)
	_ ServiceCaller[*stringMsg, *stringMsg]    = (*Client[*stringMsg, *stringMsg])(nil)
	_ ServiceResponder[*stringMsg, *stringMsg] = (*Server[*stringMsg, *stringMsg])(nil)
)
