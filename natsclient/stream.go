package natsclient

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jazi007/oxidros/errors"
)

// EnsureCacheStream creates (or updates) the memory-backed stream that
// retains the last depth samples published on subject. The stream is
// the transport realization of transient-local durability: late-joining
// readers replay its contents before receiving live data. Creating the
// same stream twice is idempotent, so every publisher and subscriber of
// a cached topic calls this with the same name.
func (c *Client) EnsureCacheStream(ctx context.Context, name, subject string, depth int) (jetstream.Stream, error) {
	js := c.JetStream()
	if js == nil {
		return nil, errors.WrapFatal(errors.ErrConnection, "Client", "EnsureCacheStream", "not connected")
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		MaxMsgs:  int64(depth),
		Discard:  jetstream.DiscardOld,
		Storage:  jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureCacheStream", "create stream "+name)
	}
	return stream, nil
}

// ConsumeCached attaches an ephemeral consumer to a cache stream,
// replaying everything retained before delivering new samples. filter
// may contain wildcard tokens. The returned ConsumeContext stops
// delivery when stopped.
func (c *Client) ConsumeCached(
	ctx context.Context,
	streamName, filter string,
	handler func(jetstream.Msg),
) (jetstream.ConsumeContext, error) {
	js := c.JetStream()
	if js == nil {
		return nil, errors.WrapFatal(errors.ErrConnection, "Client", "ConsumeCached", "not connected")
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: filter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckNonePolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "ConsumeCached", "create consumer on "+streamName)
	}
	cc, err := consumer.Consume(handler)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "ConsumeCached", "start consuming "+streamName)
	}
	return cc, nil
}
