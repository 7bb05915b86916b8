package rmw

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/graph"
	"github.com/jazi007/oxidros/health"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/metric"
	"github.com/jazi007/oxidros/natsclient"
)

// Environment variables consumed at Context creation.
const (
	// EnvDomainID overrides the default domain id 0.
	EnvDomainID = "ROS_DOMAIN_ID"
	// EnvTransportURL overrides the transport server URL.
	EnvTransportURL = "OXIDROS_NATS_URL"
)

// DefaultTransportURL is used when no URL is configured.
const DefaultTransportURL = "nats://127.0.0.1:4222"

// Context owns the shared transport session, the domain id, the
// process-wide remap/parameter table, and the discovery graph. It is
// created once per logical participant and shared by every Node
// derived from it.
type Context struct {
	domainID  uint32
	enclave   string
	sessionID string
	args      *config.Args

	client  *natsclient.Client
	graph   *graph.Cache
	metrics *metric.Registry
	monitor *health.Monitor
	logger  *slog.Logger

	nodeIDs atomic.Uint32

	cancelWatch context.CancelFunc
	group       *errgroup.Group

	closed atomic.Bool
}

// ContextOption configures a Context at creation time.
type ContextOption func(*contextConfig) error

type contextConfig struct {
	domainID   uint32
	domainSet  bool
	url        string
	enclave    string
	args       *config.Args
	logger     *slog.Logger
	connectTTL time.Duration
}

// WithDomainID fixes the domain id instead of reading EnvDomainID.
func WithDomainID(id uint32) ContextOption {
	return func(c *contextConfig) error {
		c.domainID = id
		c.domainSet = true
		return nil
	}
}

// WithTransportURL sets the transport server URL instead of reading
// EnvTransportURL.
func WithTransportURL(url string) ContextOption {
	return func(c *contextConfig) error {
		if url == "" {
			return fmt.Errorf("transport URL cannot be empty")
		}
		c.url = url
		return nil
	}
}

// WithArgs supplies pre-parsed remap rules and parameter assignments.
func WithArgs(args config.Args) ContextOption {
	return func(c *contextConfig) error {
		c.args = &args
		return nil
	}
}

// WithEnclave sets the security enclave name.
func WithEnclave(enclave string) ContextOption {
	return func(c *contextConfig) error {
		c.enclave = enclave
		return nil
	}
}

// WithContextLogger sets the structured logger for the context and
// everything derived from it.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *contextConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithConnectTimeout bounds the initial transport connection attempt.
func WithConnectTimeout(d time.Duration) ContextOption {
	return func(c *contextConfig) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", d)
		}
		c.connectTTL = d
		return nil
	}
}

// NewContext establishes a transport session and starts the liveliness
// watcher that populates the graph cache. An unreachable transport is a
// fatal startup failure. The cache fills asynchronously; callers must
// not assume it is complete immediately after creation.
func NewContext(opts ...ContextOption) (*Context, error) {
	cfg := contextConfig{
		url:        DefaultTransportURL,
		logger:     slog.Default(),
		connectTTL: 10 * time.Second,
	}
	if v := os.Getenv(EnvTransportURL); v != "" {
		cfg.url = v
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Context", "NewContext", "apply option")
		}
	}
	if !cfg.domainSet {
		if v := os.Getenv(EnvDomainID); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Context", "NewContext", "parse "+EnvDomainID)
			}
			cfg.domainID = uint32(id)
		}
	}
	if cfg.args == nil {
		cfg.args = &config.Args{}
	}
	if cfg.enclave == "" {
		cfg.enclave = cfg.args.Enclave
	}

	sessionID := uuidHex()

	logger := cfg.logger.With("component", "rmw", "session", sessionID)

	client, err := natsclient.New(cfg.url,
		natsclient.WithLogger(cfg.logger),
		natsclient.WithName("oxidros-"+sessionID[:8]),
	)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.connectTTL)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}

	bucket := fmt.Sprintf("rmw_graph_%d", cfg.domainID)
	if err := client.EnsureLivelinessBucket(connectCtx, bucket); err != nil {
		_ = client.Close()
		return nil, err
	}

	metrics := metric.NewRegistry()
	metrics.Metrics.TransportState.Set(1)

	cache := graph.NewCache(cfg.logger)
	cache.OnChange(func(graph.Change) {
		metrics.Metrics.GraphEntities.Set(float64(cache.Len()))
	})

	monitor := health.NewMonitor()
	monitor.UpdateHealthy("transport", "connected to "+cfg.url)
	monitor.UpdateHealthy("graph", "watching liveliness")

	c := &Context{
		domainID:  cfg.domainID,
		enclave:   cfg.enclave,
		sessionID: sessionID,
		args:      cfg.args,
		client:    client,
		graph:     cache,
		metrics:   metrics,
		monitor:   monitor,
		logger:    logger,
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	c.cancelWatch = cancelWatch
	c.group, watchCtx = errgroup.WithContext(watchCtx)
	c.group.Go(func() error {
		if err := c.watchLiveliness(watchCtx); err != nil {
			c.monitor.UpdateUnhealthy("graph", err.Error())
			return err
		}
		return nil
	})

	logger.Info("context created", "domain_id", cfg.domainID, "url", cfg.url)
	return c, nil
}

func uuidHex() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// watchLiveliness feeds liveliness announcements into the graph cache
// until the context shuts down.
func (c *Context) watchLiveliness(ctx context.Context) error {
	watcher, err := c.client.WatchLiveliness(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				// End of the initial snapshot.
				continue
			}
			gid, err := parseGIDHex(entry.Key())
			if err != nil {
				c.logger.Warn("ignoring liveliness entry with malformed key", "key", entry.Key())
				continue
			}
			switch entry.Operation() {
			case jetstream.KeyValuePut:
				c.graph.Alive(gid, string(entry.Value()))
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				c.graph.Dropped(gid)
			}
		}
	}
}

func parseGIDHex(key string) (message.GID, error) {
	var gid message.GID
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != len(gid) {
		return gid, fmt.Errorf("rmw.parseGIDHex: bad gid key %q", key)
	}
	copy(gid[:], raw)
	return gid, nil
}

// DomainID returns the domain this context participates in.
func (c *Context) DomainID() uint32 { return c.domainID }

// Enclave returns the security enclave name, empty when unset.
func (c *Context) Enclave() string { return c.enclave }

// SessionID returns the unique id of this transport session.
func (c *Context) SessionID() string { return c.sessionID }

// GraphCache returns the discovery graph populated from liveliness
// announcements.
func (c *Context) GraphCache() *graph.Cache { return c.graph }

// Args returns the remap/parameter table this context was created with.
func (c *Context) Args() *config.Args { return c.args }

// Metrics returns the metric registry for this context.
func (c *Context) Metrics() *metric.Registry { return c.metrics }

// Health aggregates the health of the transport session and the graph
// watcher. The transport state is sampled at call time.
func (c *Context) Health() health.Status {
	switch c.client.Status() {
	case natsclient.StatusConnected:
		c.monitor.UpdateHealthy("transport", "connected")
	case natsclient.StatusReconnecting:
		c.monitor.UpdateDegraded("transport", "reconnecting")
	default:
		c.monitor.UpdateUnhealthy("transport", c.client.Status().String())
	}
	return c.monitor.Overall("context")
}

// CreateSelector returns an event loop bound to this context's metrics
// and logger. A Selector must only be used from one goroutine.
func (c *Context) CreateSelector() *Selector {
	return newSelector(c.logger, c.metrics.Metrics)
}

// Shutdown retracts this session's remaining liveliness tokens, stops
// discovery, and closes the transport session. All nodes and endpoints
// derived from this context become unusable.
func (c *Context) Shutdown() error {
	if c.closed.Swap(true) {
		return nil
	}
	retractCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
	if err := c.client.RetractAllLiveliness(retractCtx); err != nil {
		c.logger.Warn("liveliness retraction on shutdown failed", "error", err)
	}
	cancel()
	c.cancelWatch()
	_ = c.group.Wait()
	c.metrics.Metrics.TransportState.Set(0)
	c.monitor.UpdateUnhealthy("transport", "closed")
	c.logger.Info("context shut down")
	return c.client.Close()
}
