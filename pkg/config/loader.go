package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, defaults, and validates the catalog directory. This is
// the single entry point `cmd/mlm` calls at startup — mirrors
// config.Initialize in tarsy's pkg/config/loader.go.
//
// Steps:
//  1. Locate exactly one of models.yaml / models.json in configDir.
//  2. Expand environment variable references.
//  3. Unmarshal into YAMLFile.
//  4. Merge Defaults onto the built-in baseline, then apply per-model
//     defaults for any unset ModelSpec field.
//  5. Validate every invariant from spec §4.2.
//  6. Build the Catalog (uniqueness was already enforced in step 5).
func Initialize(_ context.Context, configDir string) (*Catalog, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading model catalog")

	path, err := resolveCatalogPath(configDir)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	raw = expandEnv(raw)

	var file YAMLFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}

	defaults := DefaultDefaults()
	if file.Defaults != nil {
		if err := mergo.Merge(&defaults, *file.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging defaults: %w", err)
		}
	}

	server := ServerConfig{HTTPPort: "8080", ModelEndpointHost: "127.0.0.1"}
	if file.System != nil {
		if err := mergo.Merge(&server, *file.System, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging system config: %w", err)
		}
	}

	for i := range file.Models {
		applyModelDefaults(&file.Models[i], defaults)
		if !file.Models[i].EngineKind.IsValid() {
			log.Warn("unrecognized engine_kind", "model", file.Models[i].ID, "engine_kind", file.Models[i].EngineKind)
		}
	}

	if len(file.Models) == 0 {
		return nil, ErrCatalogEmpty
	}

	if err := validate(file.Models); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	cat, err := newCatalog(file.Models, defaults, server)
	if err != nil {
		return nil, err
	}

	log.Info("catalog loaded", "models", len(file.Models))
	return cat, nil
}

// resolveCatalogPath picks exactly one of models.yaml / models.json from
// configDir, per spec §9's open question ("a correct implementation should
// read exactly one, and reject duplicates").
func resolveCatalogPath(configDir string) (string, error) {
	yamlPath := filepath.Join(configDir, "models.yaml")
	jsonPath := filepath.Join(configDir, "models.json")

	_, yamlErr := os.Stat(yamlPath)
	_, jsonErr := os.Stat(jsonPath)

	switch {
	case yamlErr == nil && jsonErr == nil:
		return "", fmt.Errorf("%w: both %s and %s exist", ErrNoCatalogFile, yamlPath, jsonPath)
	case yamlErr == nil:
		return yamlPath, nil
	case jsonErr == nil:
		return jsonPath, nil
	default:
		return "", fmt.Errorf("%w: looked in %s", ErrNoCatalogFile, configDir)
	}
}

func applyModelDefaults(m *ModelSpec, d Defaults) {
	if m.StartupTimeoutSec == 0 {
		m.StartupTimeoutSec = d.StartupTimeoutSeconds
	}
	if m.HealthIntervalSec == 0 {
		m.HealthIntervalSec = d.HealthProbeIntervalSec
	}
}
