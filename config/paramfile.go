package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	oerr "github.com/jazi007/oxidros/errors"
)

// ParseParamFile loads a parameter YAML file of the form
//
//	node_name:
//	  ros__parameters:
//	    param1: value1
//
// Section keys may be node base names, fully qualified names, or
// wildcard patterns ("*" matches one token, "**" zero or more).
func ParseParamFile(path string) ([]ParamAssignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oerr.Wrap(err, "config", "ParseParamFile", "read parameter file")
	}
	return parseParamYAML(data)
}

func parseParamYAML(data []byte) ([]ParamAssignment, error) {
	var root map[string]map[string]map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config.ParseParamFile: parse failed: %v: %w", err, oerr.ErrInvalidConfig)
	}

	var params []ParamAssignment
	for node, sections := range root {
		values, ok := sections["ros__parameters"]
		if !ok {
			return nil, fmt.Errorf("config.ParseParamFile: node %q has no ros__parameters section: %w",
				node, oerr.ErrInvalidConfig)
		}
		for name, value := range values {
			params = append(params, ParamAssignment{NodeName: node, Name: name, Value: value})
		}
	}
	// Map iteration order is random; keep output deterministic for tests
	// and for later-wins override semantics.
	sort.Slice(params, func(i, j int) bool {
		if params[i].NodeName != params[j].NodeName {
			return params[i].NodeName < params[j].NodeName
		}
		return params[i].Name < params[j].Name
	})
	return params, nil
}

// MatchWildcardPattern matches a node name against a slash-delimited
// pattern where "*" matches exactly one token and "**" matches zero or
// more tokens.
func MatchWildcardPattern(pattern, nodeName string) bool {
	return matchTokens(splitTokens(pattern), splitTokens(nodeName))
}

func splitTokens(s string) []string {
	var tokens []string
	for _, t := range strings.Split(s, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func matchTokens(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	switch pattern[0] {
	case "**":
		for i := 0; i <= len(name); i++ {
			if matchTokens(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(name) > 0 && matchTokens(pattern[1:], name[1:])
	default:
		return len(name) > 0 && pattern[0] == name[0] && matchTokens(pattern[1:], name[1:])
	}
}
