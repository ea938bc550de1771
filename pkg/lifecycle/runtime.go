package lifecycle

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"github.com/tarsy-labs/mlm/pkg/config"
)

// instanceID identifies this process for log correlation across a
// multi-pod deployment, the same ambient affordance tarsy's WorkerPool
// threads through as podID, without the multi-host scheduling machinery
// the Non-goals exclude. Computed once at process start.
var instanceID = computeInstanceID()

func computeInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// runtime is the mutable per-ModelSpec record LifecycleEngine owns. All
// field access outside of newRuntime/snapshot goes through actionMu or mu,
// mirroring tarsy's WorkerPool/Worker split between the per-session cancel
// registry and per-worker state.
type runtime struct {
	spec *config.ModelSpec

	// actionMu serializes start/stop for this runtime — the per-runtime
	// action lock spec §4.1/§5 requires.
	actionMu sync.Mutex

	mu                   sync.Mutex
	state                State
	stateEnteredAt       time.Time
	startDeadlineAt      time.Time
	healthChecksAttempted uint
	lastFailureReason    string
	activeOperation      ActiveOperation
	supervisorCancel     context.CancelFunc
}

func newRuntime(spec *config.ModelSpec) *runtime {
	return &runtime{
		spec:           spec,
		state:          StateStopped,
		stateEnteredAt: time.Now(),
		activeOperation: OperationNone,
	}
}

// setState transitions the runtime, refreshing state_entered_at. Callers
// must hold mu.
func (r *runtime) setState(s State) {
	r.state = s
	r.stateEnteredAt = time.Now()
}

func (r *runtime) snapshot() RuntimeView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := RuntimeView{
		ID:                r.spec.ID,
		DisplayName:       r.spec.DisplayName,
		EngineKind:        string(r.spec.EngineKind),
		Port:              r.spec.EndpointPort,
		ContainerName:     r.spec.ContainerName,
		State:             r.state,
		EstimatedMemoryGB: r.spec.EstimatedMemoryGB,
		MaxContextTokens:  r.spec.MaxContextTokens,
		SupportsTools:     r.spec.SupportsTools,
		ToolCallParser:    r.spec.ToolCallParser,
		LastFailureReason: r.lastFailureReason,
		InstanceID:        instanceID,
	}

	if r.state == StateStarting {
		elapsed := time.Since(r.stateEnteredAt).Seconds()
		timeout := r.startDeadlineAt.Sub(r.stateEnteredAt).Seconds()
		percent := 0
		if timeout > 0 {
			percent = int(math.Min(100, math.Floor(100*elapsed/timeout)))
		}
		view.StartupProgress = &StartupProgress{
			ElapsedSeconds:  elapsed,
			TimeoutSeconds:  timeout,
			HealthChecks:    r.healthChecksAttempted,
			ProgressPercent: percent,
		}
	}

	return view
}
