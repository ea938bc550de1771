package api

import (
	"fmt"

	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/tool"
)

// engineResolver adapts *lifecycle.Engine to tool.ModelResolver, so the
// orchestrator reaches a running model's endpoint without importing
// pkg/lifecycle directly.
type engineResolver struct {
	engine *lifecycle.Engine
	host   string
}

// NewModelResolver builds the tool.ModelResolver cmd/mlm wires into the
// Orchestrator, backed by engine and addressing runtimes at host.
func NewModelResolver(engine *lifecycle.Engine, host string) tool.ModelResolver {
	return &engineResolver{engine: engine, host: host}
}

// ResolveRunning implements tool.ModelResolver.
func (r *engineResolver) ResolveRunning(modelID string) (string, uint, error) {
	view, err := r.engine.Get(modelID)
	if err != nil {
		return "", 0, err
	}
	if view.State != lifecycle.StateRunning {
		return "", 0, tool.ErrModelNotReady
	}
	return fmt.Sprintf("http://%s:%d", r.host, view.Port), view.MaxContextTokens, nil
}
