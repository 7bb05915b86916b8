package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args, user, err := ParseArgs([]string{
		"prog",
		"--ros-args",
		"-r", "foo:=bar",
		"-r", "my_node:/topic_a:=/remapped_a",
		"-p", "use_sim_time:=true",
		"-p", "rate:=10",
		"--params-file", "params.yaml",
		"--enclave", "/secure",
		"--log-level", "debug",
		"--",
		"trailing",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prog", "trailing"}, user)

	require.Len(t, args.RemapRules, 2)
	assert.Equal(t, RemapRule{From: "foo", To: "bar"}, args.RemapRules[0])
	assert.Equal(t, RemapRule{NodeName: "my_node", From: "/topic_a", To: "/remapped_a"}, args.RemapRules[1])

	require.Len(t, args.ParamAssignments, 2)
	assert.Equal(t, "use_sim_time", args.ParamAssignments[0].Name)
	assert.Equal(t, true, args.ParamAssignments[0].Value)
	assert.Equal(t, 10, args.ParamAssignments[1].Value)

	assert.Equal(t, []string{"params.yaml"}, args.ParamFiles)
	assert.Equal(t, "/secure", args.Enclave)
	assert.Equal(t, "debug", args.LogLevel)
}

func TestParseArgsMultipleSections(t *testing.T) {
	args, user, err := ParseArgs([]string{
		"--ros-args", "-r", "a:=b",
		"--ros-args", "-r", "c:=d",
	})
	require.NoError(t, err)
	assert.Empty(t, user)
	assert.Len(t, args.RemapRules, 2)
}

func TestParseArgsErrors(t *testing.T) {
	_, _, err := ParseArgs([]string{"--ros-args", "--bogus"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"--ros-args", "-r"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"--ros-args", "-r", "no_separator"})
	assert.Error(t, err)
}

func TestResolveNodeNameAndNamespace(t *testing.T) {
	args := Args{RemapRules: []RemapRule{
		{From: "__node", To: "renamed"},
		{From: "__ns", To: "/new_ns"},
	}}
	assert.Equal(t, "renamed", args.ResolveNodeName("original"))
	assert.Equal(t, "/new_ns", args.ResolveNamespace("original", "/old_ns"))

	empty := Args{}
	assert.Equal(t, "original", empty.ResolveNodeName("original"))
	assert.Equal(t, "/old_ns", empty.ResolveNamespace("original", "/old_ns"))
}

func TestResolveNodeNameScopedBeatsGlobal(t *testing.T) {
	args := Args{RemapRules: []RemapRule{
		{From: "__node", To: "global_name"},
		{NodeName: "original", From: "__node", To: "scoped_name"},
	}}
	assert.Equal(t, "scoped_name", args.ResolveNodeName("original"))
	assert.Equal(t, "global_name", args.ResolveNodeName("other"))
}

func TestExpandAndRemap(t *testing.T) {
	t.Run("absolute rule", func(t *testing.T) {
		args := Args{RemapRules: []RemapRule{{From: "/chatter", To: "/remapped_chatter"}}}
		got, err := args.ExpandAndRemap("my_node", "/", "my_node", "/chatter")
		require.NoError(t, err)
		assert.Equal(t, "/remapped_chatter", got)
	})

	t.Run("relative rule expands with namespace", func(t *testing.T) {
		args := Args{RemapRules: []RemapRule{{From: "chatter", To: "remapped_chatter"}}}
		got, err := args.ExpandAndRemap("my_node", "/my_ns", "my_node", "chatter")
		require.NoError(t, err)
		assert.Equal(t, "/my_ns/remapped_chatter", got)
	})

	t.Run("private rule", func(t *testing.T) {
		args := Args{RemapRules: []RemapRule{{From: "~/private_topic", To: "/global_topic"}}}
		got, err := args.ExpandAndRemap("my_node", "/my_ns", "my_node", "~/private_topic")
		require.NoError(t, err)
		assert.Equal(t, "/global_topic", got)
	})

	t.Run("no rule leaves expansion", func(t *testing.T) {
		args := Args{}
		got, err := args.ExpandAndRemap("my_node", "/my_ns", "my_node", "~/data")
		require.NoError(t, err)
		assert.Equal(t, "/my_ns/my_node/data", got)
	})

	t.Run("node scoped rule only hits its node", func(t *testing.T) {
		args := Args{RemapRules: []RemapRule{
			{NodeName: "target_node", From: "/topic_a", To: "/remapped_a"},
			{NodeName: "other_node", From: "/topic_a", To: "/other_remap"},
		}}
		got, err := args.ExpandAndRemap("target_node", "/", "target_node", "/topic_a")
		require.NoError(t, err)
		assert.Equal(t, "/remapped_a", got)

		got, err = args.ExpandAndRemap("unrelated_node", "/", "unrelated_node", "/topic_a")
		require.NoError(t, err)
		assert.Equal(t, "/topic_a", got)
	})

	t.Run("scoped rule matches original node name after rename", func(t *testing.T) {
		args := Args{RemapRules: []RemapRule{
			{From: "__node", To: "renamed_node"},
			{NodeName: "original_node", From: "/topic", To: "/remapped_topic"},
		}}
		// Private expansion uses the effective name, rule matching the
		// original one.
		got, err := args.ExpandAndRemap("original_node", "/", "renamed_node", "/topic")
		require.NoError(t, err)
		assert.Equal(t, "/remapped_topic", got)
	})
}

func TestParamsFor(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
talker:
  ros__parameters:
    rate: 10
/**:
  ros__parameters:
    use_sim_time: true
`), 0o644))

	args := Args{
		ParamAssignments: []ParamAssignment{
			{Name: "global_param", Value: 1},
			{NodeName: "listener", Name: "other", Value: 2},
		},
		ParamFiles: []string{file},
	}

	params, err := args.ParamsFor("/ns/talker")
	require.NoError(t, err)

	names := map[string]any{}
	for _, p := range params {
		names[p.Name] = p.Value
	}
	assert.Equal(t, 1, names["global_param"])
	assert.Equal(t, 10, names["rate"])
	assert.Equal(t, true, names["use_sim_time"])
	assert.NotContains(t, names, "other")
}

func TestMatchWildcardPattern(t *testing.T) {
	assert.True(t, MatchWildcardPattern("/**", "/foo/bar/baz"))
	assert.True(t, MatchWildcardPattern("/foo/*", "/foo/bar"))
	assert.False(t, MatchWildcardPattern("/foo/*", "/foo/bar/baz"))
	assert.True(t, MatchWildcardPattern("/**/node", "/foo/bar/node"))
	assert.True(t, MatchWildcardPattern("/**/node", "/node"))
	assert.False(t, MatchWildcardPattern("/other", "/node"))
}
