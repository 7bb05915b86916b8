package natsclient

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jazi007/oxidros/errors"
)

// EnsureLivelinessBucket creates (or opens) the key-value bucket that
// holds liveliness tokens for one domain. Keys are entity gids in hex,
// values the token text. A put announces the entity, a delete retracts
// it, and watchers receive both plus a snapshot of existing entries.
func (c *Client) EnsureLivelinessBucket(ctx context.Context, bucket string) error {
	js := c.JetStream()
	if js == nil {
		return errors.WrapFatal(errors.ErrConnection, "Client", "EnsureLivelinessBucket", "not connected")
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
	})
	if err != nil {
		return errors.WrapFatal(err, "Client", "EnsureLivelinessBucket", "create bucket "+bucket)
	}
	c.mu.Lock()
	c.kv = kv
	c.mu.Unlock()
	return nil
}

func (c *Client) liveliness() (jetstream.KeyValue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.kv == nil {
		return nil, errors.WrapFatal(errors.ErrConnection, "Client", "liveliness", "bucket not initialized")
	}
	return c.kv, nil
}

// AnnounceLiveliness stores a token under the entity's gid key.
func (c *Client) AnnounceLiveliness(ctx context.Context, gidHex, token string) error {
	kv, err := c.liveliness()
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, gidHex, []byte(token)); err != nil {
		return errors.WrapTransient(err, "Client", "AnnounceLiveliness", "put token for "+gidHex)
	}
	c.mu.Lock()
	if c.announced == nil {
		c.announced = make(map[string]struct{})
	}
	c.announced[gidHex] = struct{}{}
	c.mu.Unlock()
	return nil
}

// RetractLiveliness removes the token stored under the entity's gid.
// Watchers observe the removal as a delete operation.
func (c *Client) RetractLiveliness(ctx context.Context, gidHex string) error {
	kv, err := c.liveliness()
	if err != nil {
		return err
	}
	if err := kv.Delete(ctx, gidHex); err != nil {
		return errors.WrapTransient(err, "Client", "RetractLiveliness", "delete token for "+gidHex)
	}
	c.mu.Lock()
	delete(c.announced, gidHex)
	c.mu.Unlock()
	return nil
}

// RetractAllLiveliness removes every token this session announced and has
// not yet retracted. Called on context shutdown so peers observe the
// session's entities as dropped.
func (c *Client) RetractAllLiveliness(ctx context.Context) error {
	kv, err := c.liveliness()
	if err != nil {
		return err
	}
	c.mu.Lock()
	keys := make([]string, 0, len(c.announced))
	for k := range c.announced {
		keys = append(keys, k)
	}
	c.announced = nil
	c.mu.Unlock()

	var firstErr error
	for _, k := range keys {
		if err := kv.Delete(ctx, k); err != nil && firstErr == nil {
			firstErr = errors.WrapTransient(err, "Client", "RetractAllLiveliness", "delete token for "+k)
		}
	}
	return firstErr
}

// WatchLiveliness starts a watcher over every key in the bucket. The
// watcher first replays current entries, then a nil marker, then live
// updates. Deleted entries arrive with a delete operation marker.
func (c *Client) WatchLiveliness(ctx context.Context) (jetstream.KeyWatcher, error) {
	kv, err := c.liveliness()
	if err != nil {
		return nil, err
	}
	watcher, err := kv.WatchAll(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "WatchLiveliness", "start watcher")
	}
	return watcher, nil
}
