// Package graph maintains the live set of discovered entities, fed by
// liveliness token announcements from the transport.
package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// Entity is one discovered endpoint or node, parsed from its liveliness
// token.
type Entity struct {
	GID       message.GID
	DomainID  uint32
	SessionID string
	NodeID    uint32
	EntityID  uint32
	Kind      keyexpr.EntityKind

	Enclave   string
	Namespace string
	NodeName  string

	// Endpoint-only fields, zero for EntityNode records.
	FQName   string
	TypeName string
	TypeHash string
	QoS      qos.Profile
}

// NodeNameInfo identifies a node in the graph.
type NodeNameInfo struct {
	Name      string
	Namespace string
	Enclave   string
}

// EndpointInfo describes one publisher, subscriber, server, or client on
// a topic or service.
type EndpointInfo struct {
	NodeName  string
	Namespace string
	TypeName  string
	TypeHash  string
	GID       message.GID
	QoS       qos.Profile
}

// ChangeKind distinguishes graph change events.
type ChangeKind uint8

const (
	// ChangeAlive reports a newly announced or replaced entity.
	ChangeAlive ChangeKind = iota
	// ChangeDropped reports an entity whose token disappeared.
	ChangeDropped
)

// Change is delivered to OnChange observers after a cache mutation.
type Change struct {
	Kind   ChangeKind
	Entity Entity
}

// ParseToken parses a liveliness token into an Entity. Tokens that do
// not follow the grammar, including tokens from foreign systems sharing
// the transport, return an error so callers can skip them.
func ParseToken(token string, gid message.GID) (Entity, error) {
	parts := strings.Split(token, "/")
	if len(parts) < 9 || parts[0] != keyexpr.LivelinessPrefix {
		return Entity{}, fmt.Errorf("graph.ParseToken: not a liveliness token: %q", token)
	}

	domain, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Entity{}, fmt.Errorf("graph.ParseToken: bad domain id in %q: %w", token, err)
	}
	nodeID, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return Entity{}, fmt.Errorf("graph.ParseToken: bad node id in %q: %w", token, err)
	}
	entityID, err := strconv.ParseUint(parts[4], 10, 32)
	if err != nil {
		return Entity{}, fmt.Errorf("graph.ParseToken: bad entity id in %q: %w", token, err)
	}
	kind, ok := keyexpr.ParseEntityKind(parts[5])
	if !ok {
		return Entity{}, fmt.Errorf("graph.ParseToken: unknown entity kind %q in %q", parts[5], token)
	}

	e := Entity{
		GID:       gid,
		DomainID:  uint32(domain),
		SessionID: parts[2],
		NodeID:    uint32(nodeID),
		EntityID:  uint32(entityID),
		Kind:      kind,
		Enclave:   keyexpr.Unmangle(parts[6]),
		Namespace: keyexpr.Unmangle(parts[7]),
		NodeName:  parts[8],
	}

	if kind == keyexpr.EntityNode {
		if len(parts) != 9 {
			return Entity{}, fmt.Errorf("graph.ParseToken: node token has %d segments: %q", len(parts), token)
		}
		return e, nil
	}

	if len(parts) != 13 {
		return Entity{}, fmt.Errorf("graph.ParseToken: endpoint token has %d segments: %q", len(parts), token)
	}
	e.FQName = keyexpr.Unmangle(parts[9])
	e.TypeName = parts[10]
	e.TypeHash = parts[11]
	e.QoS, err = keyexpr.DecodeQoS(parts[12])
	if err != nil {
		return Entity{}, fmt.Errorf("graph.ParseToken: %w", err)
	}
	return e, nil
}

// Cache is the discovery graph. All methods are safe for concurrent use;
// readers never observe a half-applied mutation.
type Cache struct {
	logger *slog.Logger

	mu        sync.RWMutex
	entities  map[message.GID]Entity
	observers []func(Change)
}

// NewCache returns an empty graph cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:   logger.With("component", "graph"),
		entities: map[message.GID]Entity{},
	}
}

// Alive records an announced token. A second announcement for the same
// gid replaces the previous record. Malformed tokens are logged and
// skipped.
func (c *Cache) Alive(gid message.GID, token string) {
	e, err := ParseToken(token, gid)
	if err != nil {
		c.logger.Warn("ignoring malformed liveliness token", "token", token, "error", err)
		return
	}

	c.mu.Lock()
	c.entities[gid] = e
	observers := append(c.observers[:0:0], c.observers...)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(Change{Kind: ChangeAlive, Entity: e})
	}
}

// Dropped removes the entity announced under gid. Unknown gids are a
// no-op, so an alive token followed by a dropped token leaves no entry
// regardless of whether the alive token parsed.
func (c *Cache) Dropped(gid message.GID) {
	c.mu.Lock()
	e, ok := c.entities[gid]
	if ok {
		delete(c.entities, gid)
	}
	observers := append(c.observers[:0:0], c.observers...)
	c.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range observers {
		fn(Change{Kind: ChangeDropped, Entity: e})
	}
}

// OnChange registers an observer invoked after every mutation. Observers
// run outside the cache lock and must not block for long.
func (c *Cache) OnChange(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Watch returns a buffered channel that receives every subsequent graph
// change. A consumer that falls more than watchBuffer changes behind
// loses changes rather than stalling discovery.
func (c *Cache) Watch() <-chan Change {
	ch := make(chan Change, watchBuffer)
	c.OnChange(func(chg Change) {
		select {
		case ch <- chg:
		default:
			c.logger.Warn("dropping graph change for slow watcher", "kind", chg.Kind)
		}
	})
	return ch
}

const watchBuffer = 64

// Len returns the number of live entities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// NodeNames lists the distinct nodes currently alive, sorted by
// namespace then name.
func (c *Cache) NodeNames() []NodeNameInfo {
	c.mu.RLock()
	seen := map[NodeNameInfo]struct{}{}
	for _, e := range c.entities {
		if e.Kind != keyexpr.EntityNode {
			continue
		}
		seen[NodeNameInfo{Name: e.NodeName, Namespace: e.Namespace, Enclave: e.Enclave}] = struct{}{}
	}
	c.mu.RUnlock()

	names := make([]NodeNameInfo, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Namespace != names[j].Namespace {
			return names[i].Namespace < names[j].Namespace
		}
		return names[i].Name < names[j].Name
	})
	return names
}

// TopicNamesAndTypes maps each topic with a live publisher or subscriber
// to the sorted set of type names seen on it.
func (c *Cache) TopicNamesAndTypes() map[string][]string {
	c.mu.RLock()
	types := map[string]map[string]struct{}{}
	for _, e := range c.entities {
		if e.Kind != keyexpr.EntityPublisher && e.Kind != keyexpr.EntitySubscriber {
			continue
		}
		set, ok := types[e.FQName]
		if !ok {
			set = map[string]struct{}{}
			types[e.FQName] = set
		}
		set[e.TypeName] = struct{}{}
	}
	c.mu.RUnlock()

	out := make(map[string][]string, len(types))
	for topic, set := range types {
		list := make([]string, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Strings(list)
		out[topic] = list
	}
	return out
}

// CountPublishers returns the number of live publishers on the fully
// qualified topic name.
func (c *Cache) CountPublishers(topic string) int {
	return c.count(topic, keyexpr.EntityPublisher)
}

// CountSubscribers returns the number of live subscribers on the fully
// qualified topic name.
func (c *Cache) CountSubscribers(topic string) int {
	return c.count(topic, keyexpr.EntitySubscriber)
}

func (c *Cache) count(topic string, kind keyexpr.EntityKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entities {
		if e.Kind == kind && e.FQName == topic {
			n++
		}
	}
	return n
}

// PublishersInfo describes the live publishers on the topic.
func (c *Cache) PublishersInfo(topic string) []EndpointInfo {
	return c.endpointInfo(topic, keyexpr.EntityPublisher)
}

// SubscribersInfo describes the live subscribers on the topic.
func (c *Cache) SubscribersInfo(topic string) []EndpointInfo {
	return c.endpointInfo(topic, keyexpr.EntitySubscriber)
}

func (c *Cache) endpointInfo(topic string, kind keyexpr.EntityKind) []EndpointInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []EndpointInfo
	for _, e := range c.entities {
		if e.Kind != kind || e.FQName != topic {
			continue
		}
		out = append(out, EndpointInfo{
			NodeName:  e.NodeName,
			Namespace: e.Namespace,
			TypeName:  e.TypeName,
			TypeHash:  e.TypeHash,
			GID:       e.GID,
			QoS:       e.QoS,
		})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].GID[:]) < string(out[j].GID[:]) })
	return out
}

// IsServiceAvailable reports whether at least one live service server
// serves the fully qualified service name. A non-empty typeName must
// also match the server's announced type.
func (c *Cache) IsServiceAvailable(service, typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entities {
		if e.Kind != keyexpr.EntityServiceServer || e.FQName != service {
			continue
		}
		if typeName == "" || e.TypeName == typeName {
			return true
		}
	}
	return false
}
