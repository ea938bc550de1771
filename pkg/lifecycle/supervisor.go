package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-labs/mlm/pkg/health"
)

// runStartupSupervisor owns the Starting → {Running | Failed | Stopped}
// transition for one start call (spec §4.5). It takes r.actionMu only
// inside commitTerminal, so once Engine.Start returns, a concurrent Stop
// can observe Starting and cancel it. The first probe runs right after
// the driver start; later probes run once per health-probe interval.
// Every terminal commit this supervisor makes goes through commitTerminal,
// which re-acquires r.actionMu and rechecks ctx immediately before writing
// state, so a Stop() that already claimed the runtime always wins the race
// no matter how late this goroutine's own check of ctx.Done() was.
func (e *Engine) runStartupSupervisor(ctx context.Context, r *runtime) {
	logger := slog.With("model", r.spec.ID)

	defer func() {
		if p := recover(); p != nil {
			e.commitTerminal(ctx, r, func() {
				r.lastFailureReason = fmt.Sprintf("startup supervisor panic: %v", p)
				r.setState(StateFailed)
				r.activeOperation = OperationNone
				r.supervisorCancel = nil
			})
			logger.Error("startup supervisor panicked", "panic", p)
		}
	}()

	if err := e.driver.Start(ctx, r.spec); err != nil {
		e.commitTerminal(ctx, r, func() {
			r.lastFailureReason = err.Error()
			r.setState(StateFailed)
			r.activeOperation = OperationNone
			r.supervisorCancel = nil
		})
		logger.Error("container start failed", "error", err)
		return
	}

	interval := r.spec.HealthProbeInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for first := true; ; first = false {
		if !first {
			select {
			case <-ctx.Done():
				// Stop() signaled supervisorCancel; it owns the
				// Starting → Stopping transition from here.
				logger.Info("startup supervisor cancelled")
				return
			case <-ticker.C:
			}
		}

		if ctx.Err() != nil {
			// select can choose a ready ticker.C case even when
			// ctx.Done() is also ready; don't act on a stale tick.
			logger.Info("startup supervisor cancelled")
			return
		}

		r.mu.Lock()
		deadline := r.startDeadlineAt
		r.mu.Unlock()

		if time.Now().After(deadline) {
			stopCtx, cancel := context.WithTimeout(context.Background(), r.spec.StartupTimeout())
			_ = e.driver.Stop(stopCtx, r.spec)
			cancel()

			e.commitTerminal(ctx, r, func() {
				r.lastFailureReason = "startup_timeout"
				r.setState(StateFailed)
				r.activeOperation = OperationNone
				r.supervisorCancel = nil
			})
			logger.Warn("startup timed out")
			return
		}

		r.mu.Lock()
		r.healthChecksAttempted++
		r.mu.Unlock()

		probeStart := time.Now()
		result := e.prober.Probe(ctx, e.host, r.spec.EndpointPort, 2*time.Second)
		if e.history != nil {
			e.history.Record(r.spec.ID, health.Sample{
				When:    probeStart,
				Outcome: result.Outcome,
				Status:  result.HTTPStatus,
				RTT:     time.Since(probeStart),
			})
		}
		if result.Outcome != health.OutcomeOK {
			continue
		}

		committed := e.commitTerminal(ctx, r, func() {
			r.setState(StateRunning)
			r.activeOperation = OperationNone
			r.supervisorCancel = nil
		})
		if committed {
			logger.Info("model running")
		} else {
			logger.Info("probe succeeded but stop won the race; discarding")
		}
		return
	}
}

// commitTerminal applies a supervisor-owned terminal state transition.
// It serializes against Stop via r.actionMu and rechecks ctx immediately
// before writing state: if ctx is already cancelled, Stop() has already
// claimed this runtime and apply is skipped entirely (spec §4.5: the
// Starting → Running commit — and every other supervisor-owned commit —
// must be atomic w.r.t. the runtime's action lock). Returns whether apply
// ran.
func (e *Engine) commitTerminal(ctx context.Context, r *runtime, apply func()) bool {
	r.actionMu.Lock()
	defer r.actionMu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	r.mu.Lock()
	apply()
	r.mu.Unlock()
	view := r.snapshot()
	e.events.Publish(view)
	return true
}
