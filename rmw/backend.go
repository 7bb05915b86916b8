package rmw

import (
	"context"
	"time"

	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// The interfaces below are the capability sets an endpoint backend must
// provide. Application code written against them stays agnostic of the
// concrete transport binding; extras such as zero-copy loans belong on
// the concrete types, not here.

// Endpoint is the capability set every wire endpoint shares.
type Endpoint interface {
	GID() message.GID
	Close() error
}

// MessageSender publishes typed messages on a topic.
type MessageSender[T message.Message] interface {
	Endpoint
	Topic() string
	Profile() qos.Profile
	Send(msg T) error
}

// MessageReceiver yields typed messages from a topic, either polled or
// suspending.
type MessageReceiver[T message.Message] interface {
	Endpoint
	Topic() string
	Profile() qos.Profile
	TryRecv() (T, message.MessageInfo, bool, error)
	Recv(ctx context.Context) (T, message.MessageInfo, error)
}

// ServiceCaller issues correlated request/response calls.
type ServiceCaller[Req, Res message.Message] interface {
	Endpoint
	Service() string
	IsServiceAvailable() bool
	Call(ctx context.Context, req Req) (Res, error)
	CallWithTimeout(timeout time.Duration, req Req) (Res, error)
}

// ServiceResponder yields incoming requests, each with a single-use
// response sender.
type ServiceResponder[Req, Res message.Message] interface {
	Endpoint
	Service() string
	TakeRequest() (*ServiceRequest[Req, Res], bool, error)
	Recv(ctx context.Context) (*ServiceRequest[Req, Res], error)
}
