package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When: listing subcommands
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	// Then: every command is registered
	for _, want := range []string{"search", "index", "collections", "serve", "stats", "config", "logs", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--help"})

	// When: executing with --help
	err := root.Execute()

	// Then: usage is shown
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "amansearch")
	assert.Contains(t, buf.String(), "search")
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"config", "debug", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestRootCmd_UnknownCommandFails(t *testing.T) {
	// Given: an unknown subcommand
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"frobnicate"})

	// When/Then: execution fails
	assert.Error(t, root.Execute())
}
