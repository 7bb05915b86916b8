package rmw

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/graph"
	"github.com/jazi007/oxidros/keyexpr"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/qos"
)

// firstEntityID is where per-node entity ids start. Lower values are
// reserved for the node itself.
const firstEntityID = 10

// opTimeout bounds transport side effects of create/close operations.
const opTimeout = 5 * time.Second

type closer interface {
	Close() error
}

// Node is a named participant in the graph. It owns publishers,
// subscribers, clients, and servers, and announces its presence through
// a liveliness token.
type Node struct {
	ctx          *Context
	originalName string
	name         string
	namespace    string
	fqn          string
	gid          message.GID
	nodeID       uint32
	logger       *slog.Logger

	mu           sync.Mutex
	nextEntity   uint32
	serviceNames map[string]struct{}
	clientNames  map[string]struct{}
	endpoints    map[closer]struct{}
	closed       bool
}

// CreateNode validates the requested name and namespace, applies any
// __node and __ns remap rules, announces the node on the graph, and
// returns it. An empty namespace means the root namespace "/".
func (c *Context) CreateNode(name, namespace string) (*Node, error) {
	if c.closed.Load() {
		return nil, errors.Wrap(errors.ErrClosed, "Context", "CreateNode", "create node")
	}
	if namespace == "" {
		namespace = "/"
	}
	if err := config.ValidateNodeName(name); err != nil {
		return nil, err
	}
	if err := config.ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	effName := c.args.ResolveNodeName(name)
	effNS := c.args.ResolveNamespace(name, namespace)
	if err := config.ValidateNodeName(effName); err != nil {
		return nil, err
	}
	if err := config.ValidateNamespace(effNS); err != nil {
		return nil, err
	}

	n := &Node{
		ctx:          c,
		originalName: name,
		name:         effName,
		namespace:    effNS,
		fqn:          config.BuildNodeFQN(effNS, effName),
		gid:          newGID(),
		nodeID:       c.nodeIDs.Add(1) - 1,
		serviceNames: make(map[string]struct{}),
		clientNames:  make(map[string]struct{}),
		endpoints:    make(map[closer]struct{}),
	}
	n.logger = c.logger.With("node", n.fqn)

	token := keyexpr.LivelinessNode(c.domainID, c.sessionID, n.nodeID, c.enclave, effNS, effName)
	opCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.AnnounceLiveliness(opCtx, hex.EncodeToString(n.gid[:]), token); err != nil {
		return nil, err
	}

	c.metrics.Metrics.ActiveNodes.Inc()
	n.logger.Info("node created", "node_id", n.nodeID)
	return n, nil
}

func newGID() message.GID {
	var gid message.GID
	u := uuid.New()
	copy(gid[:], u[:])
	return gid
}

// Name returns the effective node name after remapping.
func (n *Node) Name() string { return n.name }

// Namespace returns the effective namespace after remapping.
func (n *Node) Namespace() string { return n.namespace }

// FullyQualifiedName returns namespace plus name as one absolute path.
func (n *Node) FullyQualifiedName() string { return n.fqn }

// GID returns the node's globally unique identifier.
func (n *Node) GID() message.GID { return n.gid }

// Logger returns a logger scoped to this node.
func (n *Node) Logger() *slog.Logger { return n.logger }

// Context returns the context this node was created from.
func (n *Node) Context() *Context { return n.ctx }

// ExpandAndRemapName expands a topic or service name against this node
// and applies the matching remap rule, if any.
func (n *Node) ExpandAndRemapName(topic string) (string, error) {
	return n.ctx.args.ExpandAndRemap(n.originalName, n.namespace, n.name, topic)
}

// CreateParameterServer exposes this node's parameter store through
// the standard parameter services.
func (n *Node) CreateParameterServer() (*ParameterServer, error) {
	return NewParameterServer(n)
}

// CreateSelector returns an event loop from the owning context.
func (n *Node) CreateSelector() *Selector {
	return n.ctx.CreateSelector()
}

// DeclaredParameters returns the parameter assignments addressed to
// this node from the command line and parameter files.
func (n *Node) DeclaredParameters() ([]config.ParamAssignment, error) {
	return n.ctx.args.ParamsFor(n.fqn)
}

func (n *Node) nextEntityID() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := firstEntityID + n.nextEntity
	n.nextEntity++
	return id
}

// announceEntity publishes a liveliness token for an endpoint owned by
// this node and returns the entity id used.
func (n *Node) announceEntity(
	gid message.GID,
	kind keyexpr.EntityKind,
	fqName, typeName, typeHash string,
	profile qos.Profile,
) (uint32, error) {
	entityID := n.nextEntityID()
	token := keyexpr.LivelinessEntity(
		n.ctx.domainID, n.ctx.sessionID, n.nodeID, entityID, kind,
		n.ctx.enclave, n.namespace, n.name,
		fqName, typeName, typeHash, profile,
	)
	opCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := n.ctx.client.AnnounceLiveliness(opCtx, hex.EncodeToString(gid[:]), token); err != nil {
		return 0, err
	}
	return entityID, nil
}

func (n *Node) retractEntity(gid message.GID) error {
	opCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return n.ctx.client.RetractLiveliness(opCtx, hex.EncodeToString(gid[:]))
}

// registerServiceName reserves a service server keyexpr within this
// node. A second server on the same expression is a conflict.
func (n *Node) registerServiceName(keyExpr string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.serviceNames[keyExpr]; ok {
		return errors.Wrap(
			fmt.Errorf("server already registered for %q: %w", keyExpr, errors.ErrNameConflict),
			"Node", "registerServiceName", "register server")
	}
	n.serviceNames[keyExpr] = struct{}{}
	return nil
}

func (n *Node) unregisterServiceName(keyExpr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.serviceNames, keyExpr)
}

// registerClientName reserves a service client keyexpr within this
// node, mirroring registerServiceName.
func (n *Node) registerClientName(keyExpr string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.clientNames[keyExpr]; ok {
		return errors.Wrap(
			fmt.Errorf("client already registered for %q: %w", keyExpr, errors.ErrNameConflict),
			"Node", "registerClientName", "register client")
	}
	n.clientNames[keyExpr] = struct{}{}
	return nil
}

func (n *Node) unregisterClientName(keyExpr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.clientNames, keyExpr)
}

func (n *Node) trackEndpoint(c closer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints[c] = struct{}{}
}

func (n *Node) untrackEndpoint(c closer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, c)
}

// Graph queries, answered from the local liveliness cache.

// NodeNames lists the names of all nodes currently on the graph.
func (n *Node) NodeNames() []graph.NodeNameInfo {
	return n.ctx.graph.NodeNames()
}

// TopicNamesAndTypes maps each discovered topic to its type names.
func (n *Node) TopicNamesAndTypes() map[string][]string {
	return n.ctx.graph.TopicNamesAndTypes()
}

// CountPublishers returns how many publishers exist for a topic.
func (n *Node) CountPublishers(topic string) int {
	return n.ctx.graph.CountPublishers(topic)
}

// CountSubscribers returns how many subscribers exist for a topic.
func (n *Node) CountSubscribers(topic string) int {
	return n.ctx.graph.CountSubscribers(topic)
}

// PublishersInfo describes each publisher on a topic.
func (n *Node) PublishersInfo(topic string) []graph.EndpointInfo {
	return n.ctx.graph.PublishersInfo(topic)
}

// SubscribersInfo describes each subscriber on a topic.
func (n *Node) SubscribersInfo(topic string) []graph.EndpointInfo {
	return n.ctx.graph.SubscribersInfo(topic)
}

// Close destroys every endpoint owned by the node and retracts its
// liveliness token. Closing twice is a no-op.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	eps := make([]closer, 0, len(n.endpoints))
	for ep := range n.endpoints {
		eps = append(eps, ep)
	}
	n.mu.Unlock()

	var firstErr error
	for _, ep := range eps {
		if err := ep.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := n.retractEntity(n.gid); err != nil && firstErr == nil {
		firstErr = err
	}
	n.ctx.metrics.Metrics.ActiveNodes.Dec()
	n.logger.Info("node closed")
	return firstErr
}
