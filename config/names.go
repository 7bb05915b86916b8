// Package config implements process-level configuration: name
// validation and expansion, command-line remap/parameter arguments, and
// YAML parameter files.
package config

import (
	"fmt"
	"strings"

	oerr "github.com/jazi007/oxidros/errors"
)

// NameKind selects the validation grammar applied to a name.
type NameKind uint8

const (
	// NameTopic covers topic and service names. They may be absolute
	// ("/foo/bar"), private ("~/foo"), or relative ("foo"), and may use
	// balanced {substitution} braces.
	NameTopic NameKind = iota
	// NameNode covers node base names: a single token with no slashes.
	NameNode
	// NameNamespace covers namespaces: absolute, "/" for root.
	NameNamespace
)

func (k NameKind) String() string {
	switch k {
	case NameTopic:
		return "topic"
	case NameNode:
		return "node"
	case NameNamespace:
		return "namespace"
	default:
		return "name"
	}
}

func invalidName(kind NameKind, name, reason string) error {
	return fmt.Errorf("config.ValidateName: invalid %s name %q: %s: %w", kind, name, reason, oerr.ErrInvalidName)
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTopicChar(c byte) bool {
	return isNameChar(c) || c == '/'
}

// ValidateTopicName checks a topic or service name against the naming
// grammar. The name may still be relative or private; use
// ValidateFullyQualifiedName for expanded names.
func ValidateTopicName(name string) error {
	return validateName(name, NameTopic)
}

// ValidateNodeName checks a node base name.
func ValidateNodeName(name string) error {
	return validateName(name, NameNode)
}

// ValidateNamespace checks a namespace. "/" is the valid root namespace.
func ValidateNamespace(namespace string) error {
	return validateName(namespace, NameNamespace)
}

func validateName(name string, kind NameKind) error {
	if name == "" {
		return invalidName(kind, name, "must not be empty")
	}

	i := 0
	switch kind {
	case NameTopic:
		switch {
		case name[0] == '~':
			if len(name) > 1 && name[1] != '/' {
				return invalidName(kind, name, "tilde must be followed by a slash")
			}
			i = 1
		case name[0] == '/':
			i = 1
		case name[0] == '{':
			// validated in the loop below
		case name[0] >= '0' && name[0] <= '9':
			return invalidName(kind, name, "must not start with a digit")
		case !isNameChar(name[0]):
			return invalidName(kind, name, fmt.Sprintf("invalid character %q", name[0]))
		}
	case NameNamespace:
		if name[0] != '/' {
			return invalidName(kind, name, "must start with a slash")
		}
		if name == "/" {
			return nil
		}
		i = 1
		if name[1] >= '0' && name[1] <= '9' {
			return invalidName(kind, name, "token must not start with a digit")
		}
	case NameNode:
		if name[0] >= '0' && name[0] <= '9' {
			return invalidName(kind, name, "must not start with a digit")
		}
		if !isNameChar(name[0]) {
			return invalidName(kind, name, fmt.Sprintf("invalid character %q", name[0]))
		}
	}

	braceDepth := 0
	var prev byte
	if i > 0 {
		prev = name[i-1]
	}
	for ; i < len(name); i++ {
		c := name[i]
		switch kind {
		case NameTopic:
			switch {
			case c == '{':
				braceDepth++
			case c == '}':
				if braceDepth == 0 {
					return invalidName(kind, name, "unbalanced braces")
				}
				braceDepth--
			case braceDepth > 0:
				if !isNameChar(c) {
					return invalidName(kind, name, fmt.Sprintf("invalid character %q in substitution", c))
				}
			case c == '~':
				return invalidName(kind, name, "tilde only allowed at the start")
			case !isTopicChar(c):
				return invalidName(kind, name, fmt.Sprintf("invalid character %q", c))
			}
			if c == '/' && prev == '/' {
				return invalidName(kind, name, "repeated slashes")
			}
			if c == '_' && prev == '_' {
				return invalidName(kind, name, "repeated underscores")
			}
			if prev == '/' && c >= '0' && c <= '9' {
				return invalidName(kind, name, "token must not start with a digit")
			}
		case NameNamespace:
			if !isTopicChar(c) {
				return invalidName(kind, name, fmt.Sprintf("invalid character %q", c))
			}
			if c == '/' && prev == '/' {
				return invalidName(kind, name, "repeated slashes")
			}
			if c == '_' && prev == '_' {
				return invalidName(kind, name, "repeated underscores")
			}
			if prev == '/' && c >= '0' && c <= '9' {
				return invalidName(kind, name, "token must not start with a digit")
			}
		case NameNode:
			if !isNameChar(c) {
				return invalidName(kind, name, fmt.Sprintf("invalid character %q", c))
			}
			if c == '_' && prev == '_' {
				return invalidName(kind, name, "repeated underscores")
			}
		}
		prev = c
	}

	if kind == NameTopic {
		if braceDepth != 0 {
			return invalidName(kind, name, "unbalanced braces")
		}
		if strings.HasSuffix(name, "/") {
			return invalidName(kind, name, "must not end with a slash")
		}
	}
	if kind == NameNamespace && len(name) > 1 && strings.HasSuffix(name, "/") {
		return invalidName(kind, name, "must not end with a slash")
	}
	return nil
}

// ValidateFullyQualifiedName checks an expanded topic or service name:
// absolute, with no tilde or substitutions left.
func ValidateFullyQualifiedName(name string) error {
	if !strings.HasPrefix(name, "/") {
		return invalidName(NameTopic, name, "fully qualified name must be absolute")
	}
	if strings.ContainsAny(name, "~{}") {
		return invalidName(NameTopic, name, "fully qualified name must not contain substitutions")
	}
	return validateName(name, NameTopic)
}

// IsAbsoluteName reports whether the name starts with a slash.
func IsAbsoluteName(name string) bool { return strings.HasPrefix(name, "/") }

// IsPrivateName reports whether the name starts with a tilde.
func IsPrivateName(name string) bool { return strings.HasPrefix(name, "~") }

// IsHiddenName reports whether any token of the name starts with an
// underscore, the convention for hidden topics and services.
func IsHiddenName(name string) bool {
	for _, token := range strings.Split(name, "/") {
		if strings.HasPrefix(token, "_") {
			return true
		}
	}
	return false
}

// BuildNodeFQN joins a namespace and a node base name.
func BuildNodeFQN(namespace, nodeName string) string {
	if namespace == "/" {
		return "/" + nodeName
	}
	return namespace + "/" + nodeName
}

// ExtractNamespace returns the namespace portion of a node FQN.
func ExtractNamespace(nodeFQN string) string {
	i := strings.LastIndex(nodeFQN, "/")
	if i <= 0 {
		return "/"
	}
	return nodeFQN[:i]
}

// ExtractBaseName returns the last token of a node FQN.
func ExtractBaseName(nodeFQN string) string {
	i := strings.LastIndex(nodeFQN, "/")
	return nodeFQN[i+1:]
}

// ExpandTopicName expands a topic or service name to its fully
// qualified form. Absolute names pass through, private names substitute
// the node FQN for the tilde, and relative names are prefixed with the
// namespace.
func ExpandTopicName(namespace, nodeName, topic string) (string, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return "", err
	}
	if err := ValidateNodeName(nodeName); err != nil {
		return "", err
	}
	if err := ValidateTopicName(topic); err != nil {
		return "", err
	}

	var expanded string
	switch {
	case IsAbsoluteName(topic):
		expanded = topic
	case IsPrivateName(topic):
		fqn := BuildNodeFQN(namespace, nodeName)
		if topic == "~" {
			expanded = fqn
		} else {
			expanded = fqn + topic[1:]
		}
	default:
		if namespace == "/" {
			expanded = "/" + topic
		} else {
			expanded = namespace + "/" + topic
		}
	}

	if err := ValidateFullyQualifiedName(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}
