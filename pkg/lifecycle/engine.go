package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarsy-labs/mlm/pkg/config"
	"github.com/tarsy-labs/mlm/pkg/container"
	"github.com/tarsy-labs/mlm/pkg/health"
	"github.com/tarsy-labs/mlm/pkg/memhost"
)

// EventSink receives a RuntimeView every time a runtime's state changes.
// pkg/events implements this to fan snapshots out to dashboard clients.
type EventSink interface {
	Publish(view RuntimeView)
}

type noopSink struct{}

func (noopSink) Publish(RuntimeView) {}

// Guard is the subset of memhost.Guard the engine needs — narrowed so
// tests can substitute a fake without importing gopsutil.
type Guard interface {
	Admit(ctx context.Context, requiredGB *float64, force bool) (memhost.Decision, error)
}

// Engine owns every ModelRuntime and serializes operations on each,
// grounded on tarsy's WorkerPool: a fixed set of per-entity workers plus a
// session cancel registry, here one runtime per catalog entry instead of
// one worker per queue slot.
type Engine struct {
	catalog *config.Catalog
	driver  container.Driver
	guard   Guard
	prober  health.Prober
	events  EventSink
	host    string
	history *health.History

	runtimes map[string]*runtime
}

// New builds an Engine with one Stopped runtime per catalog entry. events
// may be nil, in which case transitions are not published. history may be
// nil, in which case probe outcomes are not recorded.
func New(catalog *config.Catalog, driver container.Driver, guard Guard, prober health.Prober, probeHost string, events EventSink, history *health.History) *Engine {
	if events == nil {
		events = noopSink{}
	}
	runtimes := make(map[string]*runtime, catalog.Len())
	for _, spec := range catalog.All() {
		runtimes[spec.ID] = newRuntime(spec)
	}
	return &Engine{
		catalog:  catalog,
		driver:   driver,
		guard:    guard,
		prober:   prober,
		events:   events,
		host:     probeHost,
		history:  history,
		runtimes: runtimes,
	}
}

// HealthHistory returns the recorded probe samples for id, oldest first.
func (e *Engine) HealthHistory(id string) ([]health.Sample, error) {
	if _, ok := e.runtimes[id]; !ok {
		return nil, &ErrNotFound{ID: id}
	}
	if e.history == nil {
		return nil, nil
	}
	return e.history.For(id), nil
}

// List returns a snapshot of every runtime in catalog declaration order.
func (e *Engine) List() ([]RuntimeView, error) {
	specs := e.catalog.All()
	if len(specs) == 0 {
		return nil, ErrNotInitialized
	}
	views := make([]RuntimeView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, e.runtimes[spec.ID].snapshot())
	}
	return views, nil
}

// Get returns a single runtime's snapshot.
func (e *Engine) Get(id string) (RuntimeView, error) {
	r, ok := e.runtimes[id]
	if !ok {
		return RuntimeView{}, &ErrNotFound{ID: id}
	}
	return r.snapshot(), nil
}

// Start admits and begins a model start, spawning a StartupSupervisor on
// acceptance. It returns once the decision is made — it never waits for
// readiness (spec §4.1).
func (e *Engine) Start(ctx context.Context, id string, force bool) (Outcome, error) {
	r, ok := e.runtimes[id]
	if !ok {
		return Outcome{}, &ErrNotFound{ID: id}
	}

	r.actionMu.Lock()
	defer r.actionMu.Unlock()

	r.mu.Lock()
	state := r.state
	r.mu.Unlock()

	if state == StateRunning {
		return Outcome{Accepted: true}, nil
	}
	if state == StateStarting || state == StateStopping {
		return Outcome{Accepted: false, Reason: RejectBusy}, nil
	}

	decision, err := e.guard.Admit(ctx, r.spec.EstimatedMemoryGB, force)
	if err != nil {
		return Outcome{}, err
	}
	if !decision.Admitted && !force {
		return Outcome{
			Accepted:    false,
			Reason:      RejectInsufficientMemory,
			AvailableGB: decision.AvailableGB,
			RequiredGB:  decision.RequiredGB,
		}, nil
	}

	supCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.setState(StateStarting)
	r.startDeadlineAt = time.Now().Add(r.spec.StartupTimeout())
	r.healthChecksAttempted = 0
	r.lastFailureReason = ""
	r.activeOperation = OperationStart
	r.supervisorCancel = cancel
	r.mu.Unlock()
	view := r.snapshot()

	e.events.Publish(view)

	go e.runStartupSupervisor(supCtx, r)

	return Outcome{Accepted: true}, nil
}

// Stop transitions a runtime toward Stopped, cancelling an in-flight start
// first if necessary.
func (e *Engine) Stop(ctx context.Context, id string) (Outcome, error) {
	r, ok := e.runtimes[id]
	if !ok {
		return Outcome{}, &ErrNotFound{ID: id}
	}

	r.actionMu.Lock()
	defer r.actionMu.Unlock()

	r.mu.Lock()
	state := r.state
	switch state {
	case StateStopped, StateFailed:
		// Failed is treated as already stopped and the driver is not
		// called again. On the startup-timeout path the supervisor has
		// already made a best-effort stop (spec §4.5); after a failed
		// driver start or stop, no further stop is attempted here.
		r.mu.Unlock()
		return Outcome{Accepted: true}, nil
	case StateStopping:
		r.mu.Unlock()
		return Outcome{Accepted: false, Reason: RejectBusy}, nil
	case StateStarting:
		if r.supervisorCancel != nil {
			r.supervisorCancel()
		}
		r.setState(StateStopping)
		r.activeOperation = OperationStop
	case StateRunning:
		r.setState(StateStopping)
		r.activeOperation = OperationStop
	}
	r.mu.Unlock()
	view := r.snapshot()
	e.events.Publish(view)

	if err := e.driver.Stop(ctx, r.spec); err != nil {
		r.mu.Lock()
		r.lastFailureReason = err.Error()
		r.setState(StateFailed)
		r.activeOperation = OperationNone
		r.mu.Unlock()
		view := r.snapshot()
		e.events.Publish(view)
		slog.Error("stop failed", "model", id, "error", err)
		return Outcome{Accepted: true}, nil
	}

	r.mu.Lock()
	r.setState(StateStopped)
	r.activeOperation = OperationNone
	r.mu.Unlock()
	view = r.snapshot()
	e.events.Publish(view)

	return Outcome{Accepted: true}, nil
}
