// Package keyexpr builds the wire-level names used by the middleware:
// topic/service key expressions, liveliness tokens, and their mapping to
// transport subjects.
//
// The grammar is the rmw_zenoh one, kept byte-for-byte compatible so
// entities announced by this implementation are recognized by any other
// implementation of the same wire format:
//
//	topic:  <domain_id>/<fq_name>/<type_name>/<type_hash>
//	token:  @ros2_lv/<domain>/<session>/<node_id>/<entity_id>/<KIND>/
//	        <enclave>/<namespace>/<node_name>[/<topic>/<type>/<hash>/<qos>]
//
// Slash-bearing fields inside a token are mangled by replacing "/" with
// "%" (an empty field becomes a single "%").
package keyexpr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jazi007/oxidros/qos"
)

// LivelinessPrefix is the hermetic namespace for liveliness tokens.
const LivelinessPrefix = "@ros2_lv"

// TypeHashWildcard is used by subscribers in place of a concrete type
// hash so they match any compatible publisher.
const TypeHashWildcard = "*"

// EntityKind identifies the kind of a discovered or announced entity.
type EntityKind uint8

// Entity kinds.
const (
	EntityNode EntityKind = iota
	EntityPublisher
	EntitySubscriber
	EntityServiceServer
	EntityServiceClient
)

// String returns the two-character wire code for this entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntityNode:
		return "NN"
	case EntityPublisher:
		return "MP"
	case EntitySubscriber:
		return "MS"
	case EntityServiceServer:
		return "SS"
	case EntityServiceClient:
		return "SC"
	default:
		return "??"
	}
}

// ParseEntityKind parses a two-character wire code. The second result is
// false for unknown codes.
func ParseEntityKind(s string) (EntityKind, bool) {
	switch s {
	case "NN":
		return EntityNode, true
	case "MP":
		return EntityPublisher, true
	case "MS":
		return EntitySubscriber, true
	case "SS":
		return EntityServiceServer, true
	case "SC":
		return EntityServiceClient, true
	default:
		return 0, false
	}
}

// Topic builds a topic/service key expression.
//
// The leading slash of the fully qualified name is dropped, matching the
// rmw_zenoh mapping, e.g. Topic(0, "/chatter", "std_msgs::msg::dds_::String_", hash)
// yields "0/chatter/std_msgs::msg::dds_::String_/<hash>".
func Topic(domainID uint32, fqName, typeName, typeHash string) string {
	name := strings.TrimPrefix(fqName, "/")
	return fmt.Sprintf("%d/%s/%s/%s", domainID, name, typeName, typeHash)
}

// LivelinessNode builds the liveliness token for a node. For nodes the
// entity id equals the node id.
func LivelinessNode(domainID uint32, sessionID string, nodeID uint32, enclave, namespace, nodeName string) string {
	return fmt.Sprintf("%s/%d/%s/%d/%d/%s/%s/%s/%s",
		LivelinessPrefix,
		domainID,
		sessionID,
		nodeID,
		nodeID,
		EntityNode,
		Mangle(enclave),
		Mangle(namespace),
		nodeName,
	)
}

// LivelinessEntity builds the liveliness token for a publisher,
// subscriber, service server, or service client.
func LivelinessEntity(
	domainID uint32,
	sessionID string,
	nodeID, entityID uint32,
	kind EntityKind,
	enclave, namespace, nodeName string,
	fqName, typeName, typeHash string,
	profile qos.Profile,
) string {
	return fmt.Sprintf("%s/%d/%s/%d/%d/%s/%s/%s/%s/%s/%s/%s/%s",
		LivelinessPrefix,
		domainID,
		sessionID,
		nodeID,
		entityID,
		kind,
		Mangle(enclave),
		Mangle(namespace),
		nodeName,
		Mangle(fqName),
		typeName,
		typeHash,
		EncodeQoS(profile),
	)
}

// Mangle replaces "/" with "%" so a slash-bearing name fits into a single
// token segment. Empty names become "%".
func Mangle(name string) string {
	if name == "" {
		return "%"
	}
	return strings.ReplaceAll(name, "/", "%")
}

// Unmangle reverses Mangle. A single "%" becomes the empty string.
func Unmangle(mangled string) string {
	if mangled == "%" {
		return ""
	}
	return strings.ReplaceAll(mangled, "%", "/")
}

// RMW default QoS values; a field is omitted from the encoding when it
// equals its default.
const (
	defaultReliability = 1 // Reliable
	defaultDurability  = 2 // Volatile
	defaultHistory     = 1 // KeepLast
	defaultDepth       = 42
	defaultLiveliness  = 1 // Automatic
)

// EncodeQoS encodes the profile into the compact wire form
//
//	<Rel>:<Dur>:<Hist>,<Depth>:<DSec>,<DNs>:<LSec>,<LNs>:<Lv>,<LvSec>,<LvNs>
//
// where each value is emitted only when it differs from the RMW default.
func EncodeQoS(p qos.Profile) string {
	var b strings.Builder

	if uint8(p.Reliability) != defaultReliability {
		b.WriteString(strconv.Itoa(int(p.Reliability)))
	}
	b.WriteByte(':')

	if uint8(p.Durability) != defaultDurability {
		b.WriteString(strconv.Itoa(int(p.Durability)))
	}
	b.WriteByte(':')

	if uint8(p.History) != defaultHistory {
		b.WriteString(strconv.Itoa(int(p.History)))
	}
	b.WriteByte(',')

	if p.Depth != defaultDepth {
		b.WriteString(strconv.Itoa(p.Depth))
	}
	b.WriteByte(':')

	if p.Deadline != 0 {
		b.WriteString(strconv.FormatInt(int64(p.Deadline.Seconds()), 10))
	}
	b.WriteByte(',')
	if p.Deadline != 0 {
		b.WriteString(strconv.Itoa(int(p.Deadline.Nanoseconds() % 1e9)))
	}
	b.WriteByte(':')

	if p.Lifespan != 0 {
		b.WriteString(strconv.FormatInt(int64(p.Lifespan.Seconds()), 10))
	}
	b.WriteByte(',')
	if p.Lifespan != 0 {
		b.WriteString(strconv.Itoa(int(p.Lifespan.Nanoseconds() % 1e9)))
	}
	b.WriteByte(':')

	if uint8(p.Liveliness) != defaultLiveliness {
		b.WriteString(strconv.Itoa(int(p.Liveliness)))
	}
	b.WriteByte(',')

	if p.LivelinessLeaseDuration != 0 {
		b.WriteString(strconv.FormatInt(int64(p.LivelinessLeaseDuration.Seconds()), 10))
	}
	b.WriteByte(',')
	if p.LivelinessLeaseDuration != 0 {
		b.WriteString(strconv.Itoa(int(p.LivelinessLeaseDuration.Nanoseconds() % 1e9)))
	}

	return b.String()
}

// DecodeQoS parses the compact wire form produced by EncodeQoS. Empty
// fields take their RMW default. Malformed input returns an error rather
// than a partial profile.
func DecodeQoS(s string) (qos.Profile, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 6 {
		return qos.Profile{}, fmt.Errorf("keyexpr.DecodeQoS: want 6 colon fields, got %d in %q", len(fields), s)
	}

	p := qos.Profile{
		Reliability: defaultReliability,
		Durability:  defaultDurability,
		History:     defaultHistory,
		Depth:       defaultDepth,
		Liveliness:  defaultLiveliness,
	}

	var err error
	if v, ok, e := optUint(fields[0]); e != nil {
		err = e
	} else if ok {
		p.Reliability = qos.Reliability(v)
	}
	if v, ok, e := optUint(fields[1]); e != nil {
		err = e
	} else if ok {
		p.Durability = qos.Durability(v)
	}

	histDepth := strings.SplitN(fields[2], ",", 2)
	if len(histDepth) != 2 {
		return qos.Profile{}, fmt.Errorf("keyexpr.DecodeQoS: malformed history field %q", fields[2])
	}
	if v, ok, e := optUint(histDepth[0]); e != nil {
		err = e
	} else if ok {
		p.History = qos.History(v)
	}
	if v, ok, e := optUint(histDepth[1]); e != nil {
		err = e
	} else if ok {
		p.Depth = int(v)
	}

	if d, e := decodeDuration(fields[3]); e != nil {
		err = e
	} else {
		p.Deadline = d
	}
	if d, e := decodeDuration(fields[4]); e != nil {
		err = e
	} else {
		p.Lifespan = d
	}

	lv := strings.Split(fields[5], ",")
	if len(lv) != 3 {
		return qos.Profile{}, fmt.Errorf("keyexpr.DecodeQoS: malformed liveliness field %q", fields[5])
	}
	if v, ok, e := optUint(lv[0]); e != nil {
		err = e
	} else if ok {
		p.Liveliness = qos.Liveliness(v)
	}
	if d, e := decodeDuration(lv[1] + "," + lv[2]); e != nil {
		err = e
	} else {
		p.LivelinessLeaseDuration = d
	}

	if err != nil {
		return qos.Profile{}, err
	}
	return p, nil
}

func optUint(s string) (uint64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("keyexpr.DecodeQoS: parse %q failed: %w", s, err)
	}
	return v, true, nil
}

func decodeDuration(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("keyexpr.DecodeQoS: malformed duration %q", s)
	}
	sec, okSec, err := optUint(parts[0])
	if err != nil {
		return 0, err
	}
	nsec, okNsec, err := optUint(parts[1])
	if err != nil {
		return 0, err
	}
	if !okSec && !okNsec {
		return 0, nil
	}
	return time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond, nil
}

// ToSubject converts a key expression to a transport subject by turning
// each path segment into a subject token. A trailing TypeHashWildcard
// segment becomes the transport's single-token wildcard, which is how a
// subscriber matches publishers regardless of their concrete type hash.
func ToSubject(keyExpr string) string {
	return strings.ReplaceAll(keyExpr, "/", ".")
}

// CacheStreamName derives a transport stream name for the cache backing a
// TransientLocal key expression. Stream names are restricted to a narrow
// character set, so the key expression is hashed rather than embedded.
func CacheStreamName(keyExpr string) string {
	sum := sha256.Sum256([]byte(keyExpr))
	return "RMW_CACHE_" + hex.EncodeToString(sum[:8])
}
