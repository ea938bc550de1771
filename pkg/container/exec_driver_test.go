package container

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/mlm/pkg/config"
)

// fakeRuntimeBin writes a tiny shell script standing in for the docker/podman
// CLI and returns its path. script receives the subcommand ($1) as its first
// positional argument so tests can script different behaviors per call.
func fakeRuntimeBin(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runtime script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-runtime")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestExecDriverInspectNotPresent(t *testing.T) {
	bin := fakeRuntimeBin(t, `echo "Error: No such object: $2" 1>&2; exit 1`)
	d := NewExecDriver(bin, 0)
	status, err := d.Inspect(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, status.Present)
}

func TestExecDriverInspectRunning(t *testing.T) {
	bin := fakeRuntimeBin(t, `echo '[{"State":{"Status":"running","Running":true},"NetworkSettings":{"Ports":{}}}]'`)
	d := NewExecDriver(bin, 0)
	status, err := d.Inspect(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, status.Present)
	assert.True(t, status.Running)
	assert.Equal(t, "running", status.StatusLine)
}

func TestExecDriverStartAlreadyRunningIsNoop(t *testing.T) {
	bin := fakeRuntimeBin(t, `
if [ "$1" = "inspect" ]; then
  echo '[{"State":{"Status":"running","Running":true},"NetworkSettings":{"Ports":{}}}]'
  exit 0
fi
echo "unexpected call: $@" 1>&2
exit 1
`)
	d := NewExecDriver(bin, 0)
	spec := &config.ModelSpec{ContainerName: "c1", StartCommand: []string{"true"}}
	err := d.Start(context.Background(), spec)
	require.NoError(t, err)
}

func TestExecDriverStartRemovesStoppedContainerFirst(t *testing.T) {
	calls := filepath.Join(t.TempDir(), "calls.log")
	bin := fakeRuntimeBin(t, `
echo "$@" >> `+calls+`
if [ "$1" = "inspect" ]; then
  echo '[{"State":{"Status":"exited","Running":false},"NetworkSettings":{"Ports":{}}}]'
  exit 0
fi
if [ "$1" = "rm" ]; then
  exit 0
fi
exit 1
`)
	d := NewExecDriver(bin, 0)
	spec := &config.ModelSpec{ContainerName: "c1", StartCommand: []string{"true"}}
	err := d.Start(context.Background(), spec)
	require.NoError(t, err)

	data, readErr := os.ReadFile(calls)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "rm c1")
}

func TestExecDriverStartMissingCommand(t *testing.T) {
	bin := fakeRuntimeBin(t, `echo "Error: No such object" 1>&2; exit 1`)
	d := NewExecDriver(bin, 0)
	spec := &config.ModelSpec{ContainerName: "c1"}
	err := d.Start(context.Background(), spec)
	require.Error(t, err)
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "start", cErr.Op)
}

func TestExecDriverStopUsesStopCommandWhenDeclared(t *testing.T) {
	bin := fakeRuntimeBin(t, `echo "unexpected call to runtime: $@" 1>&2; exit 1`)
	d := NewExecDriver(bin, 0)
	spec := &config.ModelSpec{ContainerName: "c1", StopCommand: []string{"true"}}
	err := d.Stop(context.Background(), spec)
	require.NoError(t, err)
}

func TestExecDriverStopFallsBackToRuntimeStop(t *testing.T) {
	bin := fakeRuntimeBin(t, `
if [ "$1" = "stop" ] && [ "$2" = "c1" ]; then
  exit 0
fi
exit 1
`)
	d := NewExecDriver(bin, 0)
	spec := &config.ModelSpec{ContainerName: "c1"}
	err := d.Stop(context.Background(), spec)
	require.NoError(t, err)
}
