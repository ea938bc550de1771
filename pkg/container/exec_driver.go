package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/tarsy-labs/mlm/pkg/config"
)

// ExecDriver shells out to the container runtime's CLI (docker/podman —
// whichever binary is on PATH, named by runtimeBin) with no shell
// interpretation, exactly the way tarsy's pkg/mcp/transport.go builds a
// stdio subprocess: exec.CommandContext(bin, args...) with no string
// concatenation into a shell.
type ExecDriver struct {
	runtimeBin string
	timeout    time.Duration
}

// NewExecDriver creates a driver that calls runtimeBin (e.g. "docker",
// "podman") for inspect/start/stop. timeout bounds every invocation
// (spec §5: "Container driver ops: 120 s").
func NewExecDriver(runtimeBin string, timeout time.Duration) *ExecDriver {
	if runtimeBin == "" {
		runtimeBin = "docker"
	}
	return &ExecDriver{runtimeBin: runtimeBin, timeout: timeout}
}

type inspectJSON struct {
	State struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
	} `json:"State"`
	NetworkSettings struct {
		Ports map[string]interface{} `json:"Ports"`
	} `json:"NetworkSettings"`
}

// Inspect reports whether containerName exists and is running.
func (d *ExecDriver) Inspect(ctx context.Context, containerName string) (Status, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	out, err := d.run(ctx, "inspect", containerName)
	if err != nil {
		if strings.Contains(err.Error(), "No such") || strings.Contains(string(out), "No such") {
			return Status{Present: false}, nil
		}
		return Status{}, newError("inspect", err.Error(), err)
	}

	var parsed []inspectJSON
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr != nil || len(parsed) == 0 {
		return Status{}, newError("inspect", "could not parse inspect output", jsonErr)
	}

	info := parsed[0]
	portsJSON, _ := json.Marshal(info.NetworkSettings.Ports)
	return Status{
		Present:    true,
		Running:    info.State.Running,
		StatusLine: info.State.Status,
		Ports:      string(portsJSON),
	}, nil
}

// Start executes spec.StartCommand with no shell expansion. If a stopped
// container with the same name exists it is removed first; an already
// running container of the same name is treated as a success (spec §4.3).
func (d *ExecDriver) Start(ctx context.Context, spec *config.ModelSpec) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	status, err := d.Inspect(ctx, spec.ContainerName)
	if err != nil {
		return err
	}
	if status.Present && status.Running {
		slog.Info("container already running, treating start as success", "container", spec.ContainerName)
		return nil
	}
	if status.Present && !status.Running {
		if _, rmErr := d.run(ctx, "rm", spec.ContainerName); rmErr != nil {
			return newError("start", fmt.Sprintf("failed to remove stopped container %s: %v", spec.ContainerName, rmErr), rmErr)
		}
	}

	if len(spec.StartCommand) == 0 {
		return newError("start", "start_command is empty", nil)
	}
	if _, err := exec.CommandContext(ctx, spec.StartCommand[0], spec.StartCommand[1:]...).CombinedOutput(); err != nil {
		return newError("start", err.Error(), err)
	}
	return nil
}

// Stop executes spec.StopCommand if declared, otherwise stops the
// container by name via the runtime CLI.
func (d *ExecDriver) Stop(ctx context.Context, spec *config.ModelSpec) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if len(spec.StopCommand) > 0 {
		if _, err := exec.CommandContext(ctx, spec.StopCommand[0], spec.StopCommand[1:]...).CombinedOutput(); err != nil {
			return newError("stop", err.Error(), err)
		}
		return nil
	}

	if _, err := d.run(ctx, "stop", spec.ContainerName); err != nil {
		return newError("stop", err.Error(), err)
	}
	return nil
}

func (d *ExecDriver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *ExecDriver) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.runtimeBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		combined := stdout.String() + stderr.String()
		return []byte(combined), fmt.Errorf("%s %v: %w: %s", d.runtimeBin, args, err, strings.TrimSpace(combined))
	}
	return stdout.Bytes(), nil
}
