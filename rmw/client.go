package rmw

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// ServiceType names a service interface and its type hash. Unlike topic
// endpoints, where the type comes from the message itself, a service
// pairs two messages under one interface name.
type ServiceType struct {
	Name string
	Hash string
}

// Client calls one service. Each in-flight call is correlated to its
// response by the request sequence number and the client's gid.
type Client[Req, Res message.Message] struct {
	node    *Node
	service string
	keyExpr string
	subject string
	gid     message.GID
	svcType ServiceType
	profile qos.Profile
	logger  *slog.Logger

	seq    atomic.Int64
	closed atomic.Bool
	done   chan struct{}
}

// NewClient creates a client for the given service. The service name is
// expanded and remapped against the node; a nil profile means the
// services default profile. A node may hold at most one client per
// resolved service expression.
func NewClient[Req, Res message.Message](node *Node, service string, svcType ServiceType, profile *qos.Profile) (*Client[Req, Res], error) {
	p := qos.ServicesDefault()
	if profile != nil {
		p = *profile
	}
	fqService, err := node.ExpandAndRemapName(service)
	if err != nil {
		return nil, err
	}
	keyExpr := keyexpr.Topic(node.ctx.domainID, fqService, svcType.Name, svcType.Hash)
	if err := node.registerClientName(keyExpr); err != nil {
		return nil, err
	}

	c := &Client[Req, Res]{
		node:    node,
		service: fqService,
		keyExpr: keyExpr,
		subject: keyexpr.ToSubject(keyExpr),
		gid:     newGID(),
		svcType: svcType,
		profile: p,
		logger:  node.logger.With("client", fqService),
		done:    make(chan struct{}),
	}
	p.Validate(c.logger)

	if _, err := node.announceEntity(c.gid, keyexpr.EntityServiceClient, fqService, svcType.Name, svcType.Hash, p); err != nil {
		node.unregisterClientName(keyExpr)
		return nil, err
	}
	node.trackEndpoint(c)
	c.logger.Debug("client created", "key_expr", keyExpr)
	return c, nil
}

// Service returns the fully expanded and remapped service name.
func (c *Client[Req, Res]) Service() string { return c.service }

// GID returns the client's globally unique identifier.
func (c *Client[Req, Res]) GID() message.GID { return c.gid }

// IsServiceAvailable reports whether the graph currently shows a server
// for this service and type.
func (c *Client[Req, Res]) IsServiceAvailable() bool {
	return c.node.ctx.graph.IsServiceAvailable(c.service, c.svcType.Name)
}

// WaitForService polls the graph until a server appears or the context
// ends.
func (c *Client[Req, Res]) WaitForService(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.IsServiceAvailable() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(errors.ErrTimeout, "Client", "WaitForService", "wait for "+c.service)
		case <-ticker.C:
		}
	}
}

// Call sends a request and blocks for the matching response. A context
// deadline or cancellation surfaces as ErrTimeout. Responses whose
// attachment does not echo the request sequence and this client's gid
// are rejected rather than delivered.
func (c *Client[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	var zero Res
	if c.closed.Load() {
		return zero, errors.Wrap(errors.ErrClosed, "Client", "Call", "call "+c.service)
	}
	data, err := req.Marshal()
	if err != nil {
		return zero, errors.WrapInvalid(err, "Client", "Call", "marshal request")
	}

	seq := c.seq.Add(1)
	att := message.Attachment{
		SequenceNumber:    seq,
		SourceTimestampNS: time.Now().UnixNano(),
		SourceGID:         c.gid,
	}
	header := nats.Header{}
	header.Set(AttachmentHeader, hex.EncodeToString(att.Encode()))

	// Closing the client while a call is in flight must fail the call
	// rather than leave it suspended.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-callCtx.Done():
		}
	}()

	start := time.Now()
	reply, err := c.node.ctx.client.Request(callCtx, c.subject, header, data)
	metrics := c.node.ctx.metrics.Metrics
	if err != nil {
		metrics.ServiceCalls.WithLabelValues(c.service, "error").Inc()
		if c.closed.Load() {
			return zero, errors.Wrap(errors.ErrClosed, "Client", "Call", "call "+c.service)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, errors.WrapTransient(ctx.Err(), "Client", "Call", "call "+c.service)
		}
		if ctx.Err() != nil || errors.Is(err, nats.ErrTimeout) {
			return zero, errors.WrapTransient(errors.ErrTimeout, "Client", "Call", "call "+c.service)
		}
		return zero, err
	}
	metrics.ServiceDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())

	if _, err := c.correlateReply(reply.Header, seq); err != nil {
		metrics.ServiceCalls.WithLabelValues(c.service, "invalid").Inc()
		return zero, err
	}

	res := message.New[Res]()
	if err := res.Unmarshal(reply.Data); err != nil {
		metrics.ServiceCalls.WithLabelValues(c.service, "invalid").Inc()
		return zero, errors.WrapInvalid(err, "Client", "Call", "unmarshal response")
	}
	metrics.ServiceCalls.WithLabelValues(c.service, "ok").Inc()
	return res, nil
}

// correlateReply decodes the reply attachment and verifies it echoes
// the request sequence number and this client's gid. A reply for a
// different call or caller fails with ErrInvalidAttachment.
func (c *Client[Req, Res]) correlateReply(header nats.Header, seq int64) (message.Attachment, error) {
	att, err := decodeAttachmentHeader(header)
	if err != nil {
		return message.Attachment{}, err
	}
	if att.SequenceNumber != seq || att.SourceGID != c.gid {
		return message.Attachment{}, errors.Wrap(errors.ErrInvalidAttachment,
			"Client", "Call", "correlate response for "+c.service)
	}
	return att, nil
}

// CallWithTimeout is Call with a fresh deadline.
func (c *Client[Req, Res]) CallWithTimeout(timeout time.Duration, req Req) (Res, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Call(ctx, req)
}

// Close retracts the client's liveliness token and releases its service
// name registration. Closing twice is a no-op.
func (c *Client[Req, Res]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	c.node.unregisterClientName(c.keyExpr)
	c.node.untrackEndpoint(c)
	return c.node.retractEntity(c.gid)
}
