package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	oerr "github.com/jazi007/oxidros/errors"
)

// RemapRule renames a topic, service, node name ("__node"), or
// namespace ("__ns"). A rule with an empty NodeName applies to every
// node; otherwise it applies only to the node whose original base name
// matches.
type RemapRule struct {
	NodeName string
	From     string
	To       string
}

// AppliesTo reports whether the rule targets the node with the given
// original base name.
func (r RemapRule) AppliesTo(nodeName string) bool {
	return r.NodeName == "" || r.NodeName == nodeName
}

// ParamAssignment sets one parameter, either for every node (empty
// NodeName) or for nodes matching NodeName, which may be a /*- and
// /**-style wildcard pattern from a parameter file.
type ParamAssignment struct {
	NodeName string
	Name     string
	Value    any
}

// AppliesTo reports whether the assignment targets the node with the
// given fully qualified name or base name.
func (p ParamAssignment) AppliesTo(nodeName string) bool {
	if p.NodeName == "" {
		return true
	}
	if strings.Contains(p.NodeName, "*") {
		return MatchWildcardPattern(p.NodeName, nodeName)
	}
	return p.NodeName == nodeName || ExtractBaseName(p.NodeName) == nodeName
}

// Args is the parsed process-level argument set shared by all nodes of
// a Context.
type Args struct {
	RemapRules       []RemapRule
	ParamAssignments []ParamAssignment
	ParamFiles       []string
	Enclave          string
	LogLevel         string
}

// ParseArgs splits argv into recognized sections and user arguments.
// Sections start at "--ros-args" and end at "--" or the next section;
// everything outside a section is returned as user arguments. Multiple
// sections merge.
func ParseArgs(argv []string) (Args, []string, error) {
	var args Args
	var user []string

	i := 0
	for i < len(argv) {
		if argv[i] != "--ros-args" {
			user = append(user, argv[i])
			i++
			continue
		}
		i++
		for i < len(argv) && argv[i] != "--ros-args" {
			if argv[i] == "--" {
				i++
				break
			}
			n, err := args.parseFlag(argv[i:])
			if err != nil {
				return Args{}, nil, err
			}
			i += n
		}
	}
	return args, user, nil
}

// parseFlag consumes one flag (and its value when it takes one) from
// rest and reports how many arguments were consumed.
func (a *Args) parseFlag(rest []string) (int, error) {
	flag := rest[0]
	value := func() (string, error) {
		if len(rest) < 2 {
			return "", fmt.Errorf("config.ParseArgs: %s requires a value: %w", flag, oerr.ErrInvalidConfig)
		}
		return rest[1], nil
	}

	switch flag {
	case "--remap", "-r":
		v, err := value()
		if err != nil {
			return 0, err
		}
		rule, err := parseRemapRule(v)
		if err != nil {
			return 0, err
		}
		a.RemapRules = append(a.RemapRules, rule)
		return 2, nil
	case "--param", "-p":
		v, err := value()
		if err != nil {
			return 0, err
		}
		p, err := parseParamAssignment(v)
		if err != nil {
			return 0, err
		}
		a.ParamAssignments = append(a.ParamAssignments, p)
		return 2, nil
	case "--params-file":
		v, err := value()
		if err != nil {
			return 0, err
		}
		a.ParamFiles = append(a.ParamFiles, v)
		return 2, nil
	case "--enclave", "-e":
		v, err := value()
		if err != nil {
			return 0, err
		}
		a.Enclave = v
		return 2, nil
	case "--log-level":
		v, err := value()
		if err != nil {
			return 0, err
		}
		a.LogLevel = v
		return 2, nil
	default:
		return 0, fmt.Errorf("config.ParseArgs: unexpected argument %q: %w", flag, oerr.ErrInvalidConfig)
	}
}

// parseRemapRule parses "from:=to" or "node:from:=to".
func parseRemapRule(s string) (RemapRule, error) {
	from, to, ok := strings.Cut(s, ":=")
	if !ok || to == "" || from == "" || strings.Contains(to, ":=") {
		return RemapRule{}, fmt.Errorf("config.ParseArgs: invalid remap rule %q: %w", s, oerr.ErrInvalidConfig)
	}
	if node, rest, scoped := strings.Cut(from, ":"); scoped {
		if node == "" || rest == "" {
			return RemapRule{}, fmt.Errorf("config.ParseArgs: invalid remap rule %q: %w", s, oerr.ErrInvalidConfig)
		}
		return RemapRule{NodeName: node, From: rest, To: to}, nil
	}
	return RemapRule{From: from, To: to}, nil
}

// parseParamAssignment parses "name:=value" or "node:name:=value". The
// value is decoded as a YAML scalar so booleans, integers, floats, and
// lists keep their types.
func parseParamAssignment(s string) (ParamAssignment, error) {
	name, raw, ok := strings.Cut(s, ":=")
	if !ok || name == "" {
		return ParamAssignment{}, fmt.Errorf("config.ParseArgs: invalid parameter assignment %q: %w", s, oerr.ErrInvalidConfig)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return ParamAssignment{}, fmt.Errorf("config.ParseArgs: parameter value %q: %w", raw, oerr.ErrInvalidConfig)
	}
	p := ParamAssignment{Name: name, Value: value}
	if node, rest, scoped := strings.Cut(name, ":"); scoped {
		p.NodeName = node
		p.Name = rest
	}
	return p, nil
}

// RemapRulesFor returns the rules that apply to the node with the given
// original base name, node-scoped rules first so they win over global
// ones on first match.
func (a *Args) RemapRulesFor(nodeName string) []RemapRule {
	var scoped, global []RemapRule
	for _, r := range a.RemapRules {
		if !r.AppliesTo(nodeName) {
			continue
		}
		if r.NodeName != "" {
			scoped = append(scoped, r)
		} else {
			global = append(global, r)
		}
	}
	return append(scoped, global...)
}

// ParamsFor returns the command-line assignments plus the assignments
// from every parameter file that apply to the node. nodeFQN is the
// node's fully qualified name, used for wildcard file sections.
func (a *Args) ParamsFor(nodeFQN string) ([]ParamAssignment, error) {
	var out []ParamAssignment
	base := ExtractBaseName(nodeFQN)
	for _, p := range a.ParamAssignments {
		if p.AppliesTo(base) || p.AppliesTo(nodeFQN) {
			out = append(out, p)
		}
	}
	for _, file := range a.ParamFiles {
		params, err := ParseParamFile(file)
		if err != nil {
			return nil, err
		}
		for _, p := range params {
			if p.AppliesTo(base) || p.AppliesTo(nodeFQN) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// ResolveNodeName applies any "__node" remap rule to the original base
// name.
func (a *Args) ResolveNodeName(original string) string {
	for _, r := range a.RemapRulesFor(original) {
		if r.From == "__node" {
			return r.To
		}
	}
	return original
}

// ResolveNamespace applies any "__ns" remap rule, matching node-scoped
// rules against the node's original base name.
func (a *Args) ResolveNamespace(originalNodeName, namespace string) string {
	for _, r := range a.RemapRulesFor(originalNodeName) {
		if r.From == "__ns" {
			return r.To
		}
	}
	return namespace
}

// ExpandAndRemap expands a topic or service name against the node's
// effective namespace and name, then applies the first matching remap
// rule. Rule from-names are expanded with the same node context before
// matching; node-scoped rules match the node's original base name.
func (a *Args) ExpandAndRemap(originalNodeName, namespace, nodeName, topic string) (string, error) {
	expanded, err := ExpandTopicName(namespace, nodeName, topic)
	if err != nil {
		return "", err
	}
	for _, r := range a.RemapRulesFor(originalNodeName) {
		if r.From == "__node" || r.From == "__ns" {
			continue
		}
		from, err := ExpandTopicName(namespace, nodeName, r.From)
		if err != nil {
			continue
		}
		if from != expanded {
			continue
		}
		to, err := ExpandTopicName(namespace, nodeName, r.To)
		if err != nil {
			return "", err
		}
		return to, nil
	}
	return expanded, nil
}
