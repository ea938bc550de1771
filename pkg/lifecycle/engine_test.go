package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/mlm/pkg/config"
	"github.com/tarsy-labs/mlm/pkg/container"
	"github.com/tarsy-labs/mlm/pkg/health"
	"github.com/tarsy-labs/mlm/pkg/memhost"
)

type fakeDriver struct {
	mu         sync.Mutex
	startErr   error
	stopErr    error
	startCalls int
	stopCalls  int
}

func (f *fakeDriver) Inspect(context.Context, string) (container.Status, error) {
	return container.Status{}, nil
}

func (f *fakeDriver) Start(context.Context, *config.ModelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeDriver) Stop(context.Context, *config.ModelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

type fakeGuard struct {
	decision memhost.Decision
	err      error
}

func (g fakeGuard) Admit(context.Context, *float64, bool) (memhost.Decision, error) {
	return g.decision, g.err
}

type fakeProber struct {
	mu      sync.Mutex
	results []health.Result
	idx     int
}

func (p *fakeProber) Probe(context.Context, string, uint16, time.Duration) health.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx >= len(p.results) {
		return p.results[len(p.results)-1]
	}
	r := p.results[p.idx]
	p.idx++
	return r
}

// blockingProber blocks inside Probe until the test sends an outcome on
// release, signalling entered first so the test can deterministically
// observe "supervisor is mid-probe" without sleeping.
type blockingProber struct {
	entered chan struct{}
	release chan health.Outcome
}

func newBlockingProber() *blockingProber {
	return &blockingProber{entered: make(chan struct{}, 1), release: make(chan health.Outcome)}
}

func (p *blockingProber) Probe(context.Context, string, uint16, time.Duration) health.Result {
	p.entered <- struct{}{}
	return health.Result{Outcome: <-p.release}
}

type recordingSink struct {
	mu    sync.Mutex
	views []RuntimeView
}

func (s *recordingSink) Publish(v RuntimeView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *recordingSink) last() RuntimeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[len(s.views)-1]
}

const testCatalogYAML = `
models:
  - id: m1
    display_name: Model One
    engine_kind: vllm
    endpoint_port: 8100
    container_name: c1
    start_command: ["noop"]
    estimated_memory_gb: 20
    startup_timeout_seconds: 30
    health_probe_interval_seconds: 1
`

func testCatalog(t *testing.T) *config.Catalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.yaml"), []byte(testCatalogYAML), 0o644))
	cat, err := config.Initialize(context.Background(), dir)
	require.NoError(t, err)
	return cat
}

func TestStartAcceptsAndTransitionsToRunning(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{}
	guard := fakeGuard{decision: memhost.Decision{Admitted: true, AvailableGB: 40}}
	prober := &fakeProber{results: []health.Result{
		{Outcome: health.OutcomeTransportError},
		{Outcome: health.OutcomeOK},
	}}
	sink := &recordingSink{}

	eng := New(cat, driver, guard, prober, "127.0.0.1", sink, nil)

	out, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.True(t, out.Accepted)

	require.Eventually(t, func() bool {
		v, _ := eng.Get("m1")
		return v.State == StateRunning
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRejectsWhenBusy(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{}
	guard := fakeGuard{decision: memhost.Decision{Admitted: true}}
	prober := &fakeProber{results: []health.Result{{Outcome: health.OutcomeTransportError}}}
	eng := New(cat, driver, guard, prober, "127.0.0.1", nil, nil)

	_, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)

	out, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, RejectBusy, out.Reason)
}

func TestStartRejectsInsufficientMemoryUnlessForced(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{}
	guard := fakeGuard{decision: memhost.Decision{Admitted: false, AvailableGB: 5, RequiredGB: 20}}
	prober := &fakeProber{results: []health.Result{{Outcome: health.OutcomeOK}}}
	eng := New(cat, driver, guard, prober, "127.0.0.1", nil, nil)

	out, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, RejectInsufficientMemory, out.Reason)
	assert.Equal(t, 5.0, out.AvailableGB)
}

func TestStartNotFound(t *testing.T) {
	cat := testCatalog(t)
	eng := New(cat, &fakeDriver{}, fakeGuard{}, &fakeProber{}, "127.0.0.1", nil, nil)

	_, err := eng.Start(context.Background(), "nope", false)
	require.Error(t, err)
	var nf *ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestStartFailsWhenDriverFails(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{startErr: assert.AnError}
	guard := fakeGuard{decision: memhost.Decision{Admitted: true}}
	eng := New(cat, driver, guard, &fakeProber{}, "127.0.0.1", nil, nil)

	_, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, _ := eng.Get("m1")
		return v.State == StateFailed
	}, time.Second, 10*time.Millisecond)

	v, _ := eng.Get("m1")
	assert.NotEmpty(t, v.LastFailureReason)
}

func TestStopFromRunningSucceeds(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{}
	guard := fakeGuard{decision: memhost.Decision{Admitted: true}}
	prober := &fakeProber{results: []health.Result{{Outcome: health.OutcomeOK}}}
	eng := New(cat, driver, guard, prober, "127.0.0.1", nil, nil)

	_, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v, _ := eng.Get("m1")
		return v.State == StateRunning
	}, time.Second, 10*time.Millisecond)

	out, err := eng.Stop(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, out.Accepted)

	v, _ := eng.Get("m1")
	assert.Equal(t, StateStopped, v.State)
}

func TestStopFromStoppedIsNoop(t *testing.T) {
	cat := testCatalog(t)
	eng := New(cat, &fakeDriver{}, fakeGuard{}, &fakeProber{}, "127.0.0.1", nil, nil)

	out, err := eng.Stop(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, out.Accepted)
}

// TestStopDuringStartingWinsRaceAgainstLateProbeSuccess exercises spec
// §4.5's requirement that the Starting -> Running commit is atomic w.r.t.
// the runtime's action lock: a probe already in flight when Stop() runs
// must not clobber the Stopped state Stop() commits, even if it later
// reports health.OutcomeOK.
func TestStopDuringStartingWinsRaceAgainstLateProbeSuccess(t *testing.T) {
	cat := testCatalog(t)
	driver := &fakeDriver{}
	guard := fakeGuard{decision: memhost.Decision{Admitted: true}}
	prober := newBlockingProber()
	eng := New(cat, driver, guard, prober, "127.0.0.1", nil, nil)

	_, err := eng.Start(context.Background(), "m1", false)
	require.NoError(t, err)

	<-prober.entered // supervisor is now blocked inside Probe for its first health check

	out, err := eng.Stop(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, out.Accepted)

	v, _ := eng.Get("m1")
	assert.Equal(t, StateStopped, v.State)

	// Let the in-flight probe report success, as if the model had come up
	// just as Stop() ran. The supervisor must discard this late success.
	prober.release <- health.OutcomeOK

	require.Never(t, func() bool {
		v, _ := eng.Get("m1")
		return v.State == StateRunning
	}, 300*time.Millisecond, 10*time.Millisecond, "a late probe success must not override a concurrent Stop")

	v, _ = eng.Get("m1")
	assert.Equal(t, StateStopped, v.State)
}

func TestListReturnsAllRuntimes(t *testing.T) {
	cat := testCatalog(t)
	eng := New(cat, &fakeDriver{}, fakeGuard{}, &fakeProber{}, "127.0.0.1", nil, nil)
	views, err := eng.List()
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "m1", views[0].ID)
}
