package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "lazyload-demo version dev\n")
	assert.Contains(t, out, "Built with "+runtime.Version())
}

func TestValidateCommandWithMissingFileUsesDefaults(t *testing.T) {
	out, err := execute(t, "validate", "-c", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration valid for lazyload-demo (development)")
	assert.Contains(t, out, "database:  none")
	assert.Contains(t, out, `lazyload:  enabled, flush every 5m0s, proxies in "proxies", getters "Get"*`)
	assert.Contains(t, out, "debug:     disabled")
	assert.Contains(t, out, "sinks:     []")
}

func TestValidateCommandReadsFile(t *testing.T) {
	path := writeConfig(t, `
app:
  name: billing
lazyload:
  enabled: false
debug:
  enabled: true
  address: 127.0.0.1:7070
sinks:
  redis:
    address: localhost:6379
  mongo:
    uri: mongodb://localhost:27017
`)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration valid for billing")
	assert.Contains(t, out, "lazyload:  disabled")
	assert.Contains(t, out, "debug:     127.0.0.1:7070")
	assert.Contains(t, out, "sinks:     [mongo redis]")
}

func TestValidateCommandRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "log:\n  level: loud\n")

	_, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestServeSeedRequiresDatabase(t *testing.T) {
	path := writeConfig(t, "log:\n  level: disabled\nlazyload:\n  flushinterval: 0s\n")

	err := runServe(context.Background(), &serveOptions{ConfigPath: path, Seed: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--seed requires a configured database")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "app:\n  env: qa\n")

	err := runServe(context.Background(), &serveOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
