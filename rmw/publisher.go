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

// AttachmentHeader carries the hex-encoded 33-byte attachment on every
// published message, request, and response.
const AttachmentHeader = "Oxidros-Attachment"

// Publisher sends typed messages on one topic. Values produced by the
// same Publisher carry monotonically increasing sequence numbers and a
// shared gid so subscribers can attribute and order them.
type Publisher[T message.Message] struct {
	node    *Node
	topic   string
	keyExpr string
	subject string
	gid     message.GID
	profile qos.Profile
	logger  *slog.Logger

	seq    atomic.Int64
	closed atomic.Bool
}

// NewPublisher creates a publisher on the given topic. The topic is
// expanded and remapped against the node; a nil profile means the
// default topic profile.
func NewPublisher[T message.Message](node *Node, topic string, profile *qos.Profile) (*Publisher[T], error) {
	p := qos.Default()
	if profile != nil {
		p = *profile
	}
	fqTopic, err := node.ExpandAndRemapName(topic)
	if err != nil {
		return nil, err
	}

	sample := message.New[T]()
	typeName, typeHash := sample.TypeName(), sample.TypeHash()
	keyExpr := keyexpr.Topic(node.ctx.domainID, fqTopic, typeName, typeHash)

	pub := &Publisher[T]{
		node:    node,
		topic:   fqTopic,
		keyExpr: keyExpr,
		subject: keyexpr.ToSubject(keyExpr),
		gid:     newGID(),
		profile: p,
		logger:  node.logger.With("publisher", fqTopic),
	}
	p.Validate(pub.logger)

	if p.IsTransientLocal() {
		// The cache stream is keyed on the hashless keyexpr so that
		// publishers and wildcard subscribers resolve the same stream.
		cacheKey := keyexpr.Topic(node.ctx.domainID, fqTopic, typeName, keyexpr.TypeHashWildcard)
		opCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := node.ctx.client.EnsureCacheStream(
			opCtx,
			keyexpr.CacheStreamName(cacheKey),
			keyexpr.ToSubject(cacheKey),
			p.EffectiveDepth(),
		)
		if err != nil {
			return nil, err
		}
	}

	if _, err := node.announceEntity(pub.gid, keyexpr.EntityPublisher, fqTopic, typeName, typeHash, p); err != nil {
		return nil, err
	}
	node.trackEndpoint(pub)
	pub.logger.Debug("publisher created", "key_expr", keyExpr)
	return pub, nil
}

// Topic returns the fully expanded and remapped topic name.
func (p *Publisher[T]) Topic() string { return p.topic }

// GID returns the publisher's globally unique identifier.
func (p *Publisher[T]) GID() message.GID { return p.gid }

// Profile returns the QoS profile the publisher was created with.
func (p *Publisher[T]) Profile() qos.Profile { return p.profile }

// SubscriberCount returns how many subscribers the graph currently
// shows for this topic.
func (p *Publisher[T]) SubscriberCount() int {
	return p.node.ctx.graph.CountSubscribers(p.topic)
}

// Send serializes the message and publishes it with its attachment.
// The sequence number of the first message is 1.
func (p *Publisher[T]) Send(msg T) error {
	if p.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "Publisher", "Send", "publish")
	}
	data, err := msg.Marshal()
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "Send", "marshal "+p.topic)
	}

	att := message.Attachment{
		SequenceNumber:    p.seq.Add(1),
		SourceTimestampNS: time.Now().UnixNano(),
		SourceGID:         p.gid,
	}
	header := nats.Header{}
	header.Set(AttachmentHeader, hex.EncodeToString(att.Encode()))

	if err := p.node.ctx.client.Publish(p.subject, header, data); err != nil {
		return err
	}
	p.node.ctx.metrics.Metrics.MessagesPublished.WithLabelValues(p.topic).Inc()
	return nil
}

// Close retracts the publisher's liveliness token. Closing twice is a
// no-op; a closed publisher rejects Send with ErrClosed.
func (p *Publisher[T]) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.node.untrackEndpoint(p)
	return p.node.retractEntity(p.gid)
}
