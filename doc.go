// Package oxidros is a ROS 2 style middleware built directly on a
// lightweight publish/subscribe transport, with no DDS layer and no
// broker-side application logic.
//
// # Architecture
//
// A Context owns one transport session per participant. Nodes created
// from it announce themselves and their endpoints as liveliness tokens,
// which every peer folds into a local graph cache for discovery.
//
//	┌─────────────────────────────────────┐
//	│             Context                 │  transport session,
//	│   (domain id, args, graph cache)    │  discovery watcher
//	└─────────────────────────────────────┘
//	           ↓ creates
//	┌─────────────────────────────────────┐
//	│              Nodes                  │  identity, remapping,
//	│ (publishers, subscribers, services) │  parameters
//	└─────────────────────────────────────┘
//	           ↓ communicate via
//	┌─────────────────────────────────────┐
//	│          NATS transport             │  core pub/sub, JetStream
//	│  (subjects, streams, KV, req/rep)   │  caches, request/reply
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - rmw: the user-facing middleware API (Context, Node, Publisher,
//     Subscriber, Client, Server, Selector, parameters)
//   - keyexpr: topic key expressions, liveliness tokens, QoS encoding
//   - graph: the discovery cache built from liveliness tokens
//   - config: name validation, remap rules, parameter files
//   - message: the typed message contract and per-sample metadata
//   - qos: quality of service profiles and presets
//   - natsclient: the transport session and its JetStream helpers
//   - metric, health, errors: observability and error taxonomy
//
// See the cmd directory for runnable talker, listener, and service
// examples.
package oxidros
