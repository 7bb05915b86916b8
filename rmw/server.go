package rmw

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// ServiceRequest is one pending call taken from a Server. Exactly one
// response may be sent; a second Send fails with ErrAlreadyResponded.
type ServiceRequest[Req, Res message.Message] struct {
	Request Req
	Info    message.MessageInfo

	server    *serverCore
	reply     string
	responded atomic.Bool
}

// Send serializes the response and delivers it to the caller, echoing
// the request sequence number and the caller's gid for correlation.
func (r *ServiceRequest[Req, Res]) Send(res Res) error {
	if r.responded.Swap(true) {
		return errors.Wrap(errors.ErrAlreadyResponded, "ServiceRequest", "Send", "respond")
	}
	data, err := res.Marshal()
	if err != nil {
		return errors.WrapInvalid(err, "ServiceRequest", "Send", "marshal response")
	}
	att := message.Attachment{
		SequenceNumber:    r.Info.SequenceNumber,
		SourceTimestampNS: time.Now().UnixNano(),
		SourceGID:         r.Info.PublisherGID,
	}
	header := nats.Header{}
	header.Set(AttachmentHeader, hex.EncodeToString(att.Encode()))
	if err := r.server.node.ctx.client.Publish(r.reply, header, data); err != nil {
		return err
	}
	r.server.node.ctx.metrics.Metrics.ServiceResponses.WithLabelValues(r.server.service).Inc()
	return nil
}

// pendingCall is a raw request before its payload is typed.
type pendingCall struct {
	data  []byte
	info  message.MessageInfo
	reply string
}

// serverCore holds the untyped half of a Server so ServiceRequest does
// not need the server's type parameters.
type serverCore struct {
	node    *Node
	service string
	keyExpr string
	gid     message.GID
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []pendingCall
	onReady func()
	closed  bool

	notify chan struct{}
	done   chan struct{}

	natsSub *nats.Subscription
}

// Server answers calls on one service. Requests queue until taken with
// TakeRequest or dispatched through a Selector.
type Server[Req, Res message.Message] struct {
	core    *serverCore
	svcType ServiceType
	profile qos.Profile
}

// NewServer creates a server for the given service. The service name is
// expanded and remapped against the node; a nil profile means the
// services default profile. A node may hold at most one server per
// resolved service expression.
func NewServer[Req, Res message.Message](node *Node, service string, svcType ServiceType, profile *qos.Profile) (*Server[Req, Res], error) {
	p := qos.ServicesDefault()
	if profile != nil {
		p = *profile
	}
	fqService, err := node.ExpandAndRemapName(service)
	if err != nil {
		return nil, err
	}
	keyExpr := keyexpr.Topic(node.ctx.domainID, fqService, svcType.Name, svcType.Hash)
	if err := node.registerServiceName(keyExpr); err != nil {
		return nil, err
	}

	core := &serverCore{
		node:    node,
		service: fqService,
		keyExpr: keyExpr,
		gid:     newGID(),
		logger:  node.logger.With("server", fqService),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.Validate(core.logger)

	ns, err := node.ctx.client.Subscribe(keyexpr.ToSubject(keyExpr), core.deliver)
	if err != nil {
		node.unregisterServiceName(keyExpr)
		return nil, err
	}
	core.natsSub = ns

	if _, err := node.announceEntity(core.gid, keyexpr.EntityServiceServer, fqService, svcType.Name, svcType.Hash, p); err != nil {
		_ = ns.Unsubscribe()
		node.unregisterServiceName(keyExpr)
		return nil, err
	}

	s := &Server[Req, Res]{core: core, svcType: svcType, profile: p}
	node.trackEndpoint(s)
	core.logger.Debug("server created", "key_expr", keyExpr)
	return s, nil
}

func (c *serverCore) deliver(msg *nats.Msg) {
	att, err := decodeAttachmentHeader(msg.Header)
	if err != nil {
		c.logger.Warn("dropping request with bad attachment", "error", err)
		return
	}
	if msg.Reply == "" {
		c.logger.Warn("dropping request without reply subject")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, pendingCall{data: msg.Data, info: att.Info(), reply: msg.Reply})
	onReady := c.onReady
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	if onReady != nil {
		onReady()
	}
}

func (c *serverCore) pop() (pendingCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return pendingCall{}, false
	}
	call := c.queue[0]
	c.queue = c.queue[1:]
	return call, true
}

func (c *serverCore) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) > 0
}

func (c *serverCore) setOnReady(fn func()) {
	c.mu.Lock()
	c.onReady = fn
	c.mu.Unlock()
}

func (c *serverCore) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Service returns the fully expanded and remapped service name.
func (s *Server[Req, Res]) Service() string { return s.core.service }

// GID returns the server's globally unique identifier.
func (s *Server[Req, Res]) GID() message.GID { return s.core.gid }

// TakeRequest pops the oldest pending call without blocking. ok is
// false when no call is pending.
func (s *Server[Req, Res]) TakeRequest() (req *ServiceRequest[Req, Res], ok bool, err error) {
	if s.core.isClosed() {
		return nil, false, errors.Wrap(errors.ErrClosed, "Server", "TakeRequest", "take request")
	}
	call, ok := s.core.pop()
	if !ok {
		return nil, false, nil
	}
	msg := message.New[Req]()
	if uerr := msg.Unmarshal(call.data); uerr != nil {
		return nil, false, errors.WrapInvalid(uerr, "Server", "TakeRequest", "unmarshal request")
	}
	return &ServiceRequest[Req, Res]{
		Request: msg,
		Info:    call.info,
		server:  s.core,
		reply:   call.reply,
	}, true, nil
}

// Recv blocks until a call arrives, the context ends, or the server
// closes.
func (s *Server[Req, Res]) Recv(ctx context.Context) (*ServiceRequest[Req, Res], error) {
	for {
		req, ok, err := s.TakeRequest()
		if err != nil || ok {
			return req, err
		}
		select {
		case <-ctx.Done():
			return nil, errors.WrapTransient(ctx.Err(), "Server", "Recv", "wait for "+s.core.service)
		case <-s.core.done:
		case <-s.core.notify:
		}
	}
}

func (s *Server[Req, Res]) hasPending() bool    { return s.core.hasPending() }
func (s *Server[Req, Res]) isClosed() bool      { return s.core.isClosed() }
func (s *Server[Req, Res]) setOnReady(f func()) { s.core.setOnReady(f) }

// Close stops accepting calls and retracts the server's liveliness
// token. Closing twice is a no-op.
func (s *Server[Req, Res]) Close() error {
	s.core.mu.Lock()
	if s.core.closed {
		s.core.mu.Unlock()
		return nil
	}
	s.core.closed = true
	s.core.mu.Unlock()

	close(s.core.done)
	if s.core.natsSub != nil {
		_ = s.core.natsSub.Unsubscribe()
	}
	s.core.node.unregisterServiceName(s.core.keyExpr)
	s.core.node.untrackEndpoint(s)
	return s.core.node.retractEntity(s.core.gid)
}
