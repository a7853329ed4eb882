// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stagecheck/internal/observability"
)

// execute runs a fresh command tree with args and captures combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	observability.ResetForTest()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "declarative UI test steps")
}

func TestRunCmd_RequiresURL(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestRunCmd_HelpListsFlags(t *testing.T) {
	out, err := execute(t, "run", "--help")
	require.NoError(t, err)
	for _, flag := range []string{"--url", "--steps", "--headless", "--background", "--screenshot-dir", "--timeout", "--width", "--height", "--cleanup-on-success"} {
		assert.Contains(t, out, flag)
	}
}
