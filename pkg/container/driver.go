// Package container abstracts the container runtime MLM supervises models
// through. It never interprets spec.StartCommand/StopCommand — those are
// opaque argv slices executed with no shell expansion, the same contract
// tarsy's pkg/mcp/transport.go uses for stdio MCP subprocess transports.
package container

import (
	"context"
	"fmt"

	"github.com/tarsy-labs/mlm/pkg/config"
)

// Status is the OS-level state of a named container.
type Status struct {
	Present    bool
	Running    bool
	StatusLine string
	Ports      string
}

// Driver is the narrow interface LifecycleEngine/StartupSupervisor use to
// start, stop, and inspect containers. Implementations never retry —
// callers decide retry policy (spec §4.3).
type Driver interface {
	Inspect(ctx context.Context, containerName string) (Status, error)
	Start(ctx context.Context, spec *config.ModelSpec) error
	Stop(ctx context.Context, spec *config.ModelSpec) error
}

// Error wraps a driver failure with the opaque reason text the caller
// surfaces as ModelRuntime.last_failure_reason.
type Error struct {
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("container driver %s failed: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op, reason string, err error) *Error {
	return &Error{Op: op, Reason: reason, Err: err}
}
