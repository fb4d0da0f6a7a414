package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"api", "worker", "standalone"}, names)

	api, _, err := root.Find([]string{"api"})
	require.NoError(t, err)
	assert.NotNil(t, api.Flags().Lookup("addr"))
	assert.NotNil(t, api.InheritedFlags().Lookup("log-level"))
}
