// Package qos defines quality-of-service profiles and their mapping onto
// transport-level caching and history features.
//
// The profile model follows the ROS 2 QoS vocabulary. Only reliability,
// durability, history, and depth affect transport behavior in this
// backend; the remaining policies are carried so the wire-level QoS
// encoding stays faithful, and unsupported settings are reported at
// profile validation time.
package qos

import (
	"log/slog"
	"time"
)

// Reliability controls message delivery guarantees.
type Reliability uint8

// Reliability policy values. The numeric values match the RMW enums used
// in the wire-level QoS encoding.
const (
	ReliabilitySystemDefault Reliability = 0
	ReliabilityReliable      Reliability = 1
	ReliabilityBestEffort    Reliability = 2
)

// Durability controls whether late-joining subscribers see past messages.
type Durability uint8

// Durability policy values.
const (
	DurabilitySystemDefault  Durability = 0
	DurabilityTransientLocal Durability = 1
	DurabilityVolatile       Durability = 2
)

// History controls how many messages are kept.
type History uint8

// History policy values.
const (
	HistorySystemDefault History = 0
	HistoryKeepLast      History = 1
	HistoryKeepAll       History = 2
)

// Liveliness controls how entity liveliness is asserted.
type Liveliness uint8

// Liveliness policy values.
const (
	LivelinessSystemDefault Liveliness = 0
	LivelinessAutomatic     Liveliness = 1
	LivelinessManualByTopic Liveliness = 2
)

// DefaultDepth is the effective history depth used when a profile leaves
// depth at 0. It matches the RMW default so tokens interoperate.
const DefaultDepth = 42

// DepthCeiling bounds the cache depth a TransientLocal endpoint may
// request. KeepAll maps to this ceiling, and explicit depths are clamped
// to it, so the transport-side cache is always finite.
const DepthCeiling = 1000

// Profile describes the quality of service for one endpoint.
type Profile struct {
	Reliability Reliability
	Durability  Durability
	History     History
	// Depth is the history depth for KeepLast. 0 means DefaultDepth.
	Depth int
	// Deadline, Lifespan, and the liveliness lease are carried for wire
	// compatibility only; zero means infinite/unset.
	Deadline                time.Duration
	Lifespan                time.Duration
	Liveliness              Liveliness
	LivelinessLeaseDuration time.Duration
}

// Default returns the default topic profile: reliable, volatile,
// keep-last with depth 10.
func Default() Profile {
	return Profile{
		Reliability: ReliabilityReliable,
		Durability:  DurabilityVolatile,
		History:     HistoryKeepLast,
		Depth:       10,
	}
}

// ServicesDefault returns the default profile for service clients and
// servers: reliable, volatile, keep-last with depth 10.
func ServicesDefault() Profile {
	return Default()
}

// SensorData returns a profile suited to high-rate sensor streams:
// best-effort, volatile, keep-last with depth 5.
func SensorData() Profile {
	p := Default()
	p.Reliability = ReliabilityBestEffort
	p.Depth = 5
	return p
}

// TransientLocal returns a profile for latched topics such as static
// transforms: reliable, transient-local, keep-last with depth 1.
func TransientLocal() Profile {
	p := Default()
	p.Durability = DurabilityTransientLocal
	p.Depth = 1
	return p
}

// EffectiveDepth returns the queue/cache depth this profile maps to.
// Depth 0 resolves to DefaultDepth, KeepAll resolves to DepthCeiling,
// and explicit depths are clamped to DepthCeiling.
func (p Profile) EffectiveDepth() int {
	if p.History == HistoryKeepAll {
		return DepthCeiling
	}
	depth := p.Depth
	if depth == 0 {
		depth = DefaultDepth
	}
	if depth > DepthCeiling {
		depth = DepthCeiling
	}
	return depth
}

// IsTransientLocal reports whether this profile requires the transport
// cache so late-joining subscribers receive prior samples.
func (p Profile) IsTransientLocal() bool {
	return p.Durability == DurabilityTransientLocal
}

// IsReliable reports whether this profile requires reliable delivery.
// SystemDefault counts as reliable.
func (p Profile) IsReliable() bool {
	return p.Reliability == ReliabilityReliable || p.Reliability == ReliabilitySystemDefault
}

// Validate reports unsupported policy settings. None of them are errors;
// the transport simply cannot honor them and the endpoint proceeds with
// the nearest supported behavior.
func (p Profile) Validate(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if p.Liveliness == LivelinessManualByTopic {
		logger.Warn("QoS liveliness ManualByTopic is not supported, using Automatic")
	}
	if p.Deadline != 0 {
		logger.Warn("QoS deadline is not implemented, ignoring")
	}
	if p.Lifespan != 0 {
		logger.Warn("QoS lifespan is not implemented, ignoring")
	}
}
