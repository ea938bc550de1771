// Package memhost implements the host-memory admission policy that keeps
// two heavy model starts from colliding. It is deliberately stateless: the
// memory already committed to running models is observed transitively
// through the host metric, never tracked locally (spec §4.4).
package memhost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v4/mem"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted    bool
	AvailableGB float64
	RequiredGB  float64
	Forced      bool
}

// Reader reports host-available memory in GB. The real implementation
// wraps gopsutil; tests substitute a fake.
type Reader interface {
	AvailableGB(ctx context.Context) (float64, error)
}

// GopsutilReader reads free+buffers+cache-reclaimable memory via
// gopsutil/v4/mem.VirtualMemory, the same "available" figure the OS
// reports to tools like free(1).
type GopsutilReader struct{}

func (GopsutilReader) AvailableGB(_ context.Context) (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("memhost: read host memory: %w", err)
	}
	return float64(vm.Available) / (1 << 30), nil
}

// Guard admits or rejects a model start based on declared memory estimate
// against host-available memory. It holds no per-model accounting.
type Guard struct {
	reader        Reader
	defaultMinGB  float64
	safetyMarginGB float64
}

// New builds a Guard. defaultMinGB is the floor required when a model's
// memory estimate is unknown; safetyMarginGB is added on top of a known
// estimate before admitting.
func New(reader Reader, defaultMinGB, safetyMarginGB float64) *Guard {
	return &Guard{reader: reader, defaultMinGB: defaultMinGB, safetyMarginGB: safetyMarginGB}
}

// Admit decides whether a start requiring requiredGB (nil if unknown) may
// proceed. force bypasses a rejection but is still logged (spec §4.4).
func (g *Guard) Admit(ctx context.Context, requiredGB *float64, force bool) (Decision, error) {
	available, err := g.reader.AvailableGB(ctx)
	if err != nil {
		return Decision{}, err
	}

	required := g.defaultMinGB
	known := requiredGB != nil
	if known {
		required = *requiredGB
	}

	threshold := required
	if known {
		threshold = required + g.safetyMarginGB
	}

	naturallyAdmitted := available >= threshold
	forced := !naturallyAdmitted && force
	admitted := naturallyAdmitted || force

	if forced {
		slog.Warn("forcing model start despite insufficient host memory",
			"available_gb", available, "required_gb", required)
	}

	return Decision{
		Admitted:    admitted,
		AvailableGB: available,
		RequiredGB:  required,
		Forced:      forced,
	}, nil
}
