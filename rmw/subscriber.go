package rmw

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// delivery is one received sample waiting in a subscriber queue.
type delivery struct {
	data []byte
	info message.MessageInfo
}

// Subscriber receives typed messages on one topic. Incoming samples are
// queued up to the profile's effective depth; samples arriving while
// the queue is full are dropped.
type Subscriber[T message.Message] struct {
	node    *Node
	topic   string
	gid     message.GID
	profile qos.Profile
	depth   int
	logger  *slog.Logger

	natsSub    *nats.Subscription
	consumeCtx jetstream.ConsumeContext

	mu      sync.Mutex
	queue   []delivery
	onReady func()
	closed  bool

	notify chan struct{}
	done   chan struct{}
}

// NewSubscriber creates a subscriber on the given topic. The topic is
// expanded and remapped against the node; a nil profile means the
// default topic profile. A transient-local subscriber first replays the
// topic cache, then receives live samples.
func NewSubscriber[T message.Message](node *Node, topic string, profile *qos.Profile) (*Subscriber[T], error) {
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
	// Subscribers listen with a wildcard hash so publishers with any
	// hash of the same type name are matched.
	wildKey := keyexpr.Topic(node.ctx.domainID, fqTopic, typeName, keyexpr.TypeHashWildcard)

	sub := &Subscriber[T]{
		node:    node,
		topic:   fqTopic,
		gid:     newGID(),
		profile: p,
		depth:   p.EffectiveDepth(),
		logger:  node.logger.With("subscriber", fqTopic),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.Validate(sub.logger)

	subject := keyexpr.ToSubject(wildKey)
	if p.IsTransientLocal() {
		opCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		streamName := keyexpr.CacheStreamName(wildKey)
		if _, err := node.ctx.client.EnsureCacheStream(opCtx, streamName, subject, sub.depth); err != nil {
			return nil, err
		}
		cc, err := node.ctx.client.ConsumeCached(opCtx, streamName, subject, func(msg jetstream.Msg) {
			sub.deliver(msg.Data(), msg.Headers())
		})
		if err != nil {
			return nil, err
		}
		sub.consumeCtx = cc
	} else {
		ns, err := node.ctx.client.Subscribe(subject, func(msg *nats.Msg) {
			sub.deliver(msg.Data, msg.Header)
		})
		if err != nil {
			return nil, err
		}
		sub.natsSub = ns
	}

	if _, err := node.announceEntity(sub.gid, keyexpr.EntitySubscriber, fqTopic, typeName, typeHash, p); err != nil {
		sub.stopTransport()
		return nil, err
	}
	node.trackEndpoint(sub)
	sub.logger.Debug("subscriber created", "subject", subject, "depth", sub.depth)
	return sub, nil
}

// Topic returns the fully expanded and remapped topic name.
func (s *Subscriber[T]) Topic() string { return s.topic }

// GID returns the subscriber's globally unique identifier.
func (s *Subscriber[T]) GID() message.GID { return s.gid }

// Profile returns the QoS profile the subscriber was created with.
func (s *Subscriber[T]) Profile() qos.Profile { return s.profile }

// PublisherCount returns how many publishers the graph currently shows
// for this topic.
func (s *Subscriber[T]) PublisherCount() int {
	return s.node.ctx.graph.CountPublishers(s.topic)
}

// deliver parses the attachment and enqueues a sample. Arrivals while
// the queue is at depth are dropped.
func (s *Subscriber[T]) deliver(data []byte, header nats.Header) {
	att, err := decodeAttachmentHeader(header)
	if err != nil {
		s.logger.Warn("dropping sample with bad attachment", "error", err)
		s.node.ctx.metrics.Metrics.MessagesDropped.WithLabelValues(s.topic).Inc()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.depth {
		// KeepLast at capacity: the incoming sample is dropped.
		s.mu.Unlock()
		s.node.ctx.metrics.Metrics.MessagesDropped.WithLabelValues(s.topic).Inc()
		return
	}
	s.queue = append(s.queue, delivery{data: data, info: att.Info()})
	onReady := s.onReady
	s.mu.Unlock()

	s.node.ctx.metrics.Metrics.MessagesReceived.WithLabelValues(s.topic).Inc()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	if onReady != nil {
		onReady()
	}
}

func decodeAttachmentHeader(header nats.Header) (message.Attachment, error) {
	raw := header.Get(AttachmentHeader)
	if raw == "" {
		return message.Attachment{}, errors.Wrap(errors.ErrInvalidAttachment, "Subscriber", "deliver", "missing attachment header")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return message.Attachment{}, errors.WrapInvalid(err, "Subscriber", "deliver", "decode attachment header")
	}
	return message.DecodeAttachment(b)
}

// TryRecv pops the oldest queued sample without blocking. ok is false
// when the queue is empty.
func (s *Subscriber[T]) TryRecv() (msg T, info message.MessageInfo, ok bool, err error) {
	s.mu.Lock()
	if s.closed && len(s.queue) == 0 {
		s.mu.Unlock()
		err = errors.Wrap(errors.ErrClosed, "Subscriber", "TryRecv", "receive")
		return
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	d := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	msg = message.New[T]()
	if uerr := msg.Unmarshal(d.data); uerr != nil {
		err = errors.WrapInvalid(uerr, "Subscriber", "TryRecv", "unmarshal "+s.topic)
		return
	}
	info = d.info
	ok = true
	return
}

// Recv blocks until a sample arrives, the context ends, or the
// subscriber closes.
func (s *Subscriber[T]) Recv(ctx context.Context) (T, message.MessageInfo, error) {
	for {
		msg, info, ok, err := s.TryRecv()
		if err != nil || ok {
			return msg, info, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, message.MessageInfo{}, errors.WrapTransient(ctx.Err(), "Subscriber", "Recv", "wait for "+s.topic)
		case <-s.done:
			// Drain whatever arrived before the close.
		case <-s.notify:
		}
	}
}

// RecvBlocking is Recv without a deadline; it returns only when a
// sample arrives or the subscriber closes.
func (s *Subscriber[T]) RecvBlocking() (T, message.MessageInfo, error) {
	return s.Recv(context.Background())
}

// setOnReady installs the selector wakeup hook.
func (s *Subscriber[T]) setOnReady(fn func()) {
	s.mu.Lock()
	s.onReady = fn
	s.mu.Unlock()
}

// hasPending reports whether a sample is queued.
func (s *Subscriber[T]) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

func (s *Subscriber[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscriber[T]) stopTransport() {
	if s.natsSub != nil {
		_ = s.natsSub.Unsubscribe()
	}
	if s.consumeCtx != nil {
		s.consumeCtx.Stop()
	}
}

// Close stops delivery and retracts the subscriber's liveliness token.
// Pending samples remain readable through TryRecv until drained.
func (s *Subscriber[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.stopTransport()
	s.node.untrackEndpoint(s)
	return s.node.retractEntity(s.gid)
}
