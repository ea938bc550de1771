// Package config loads and validates the MLM catalog and server configuration.
package config

import "time"

// EngineKind identifies the inference engine a model runs on. It only
// selects defaults; engine-specific behavior lives entirely in the
// declared start/stop commands.
type EngineKind string

const (
	EngineVLLM         EngineKind = "vllm"
	EngineTRTLLM       EngineKind = "trtllm"
	EngineOllama       EngineKind = "ollama"
	EngineTransformers EngineKind = "transformers"
)

// IsValid reports whether the engine kind is one MLM recognizes. Unknown
// kinds are still accepted by the catalog loader (opaque beyond defaults)
// but are flagged as a warning.
func (k EngineKind) IsValid() bool {
	switch k {
	case EngineVLLM, EngineTRTLLM, EngineOllama, EngineTransformers:
		return true
	default:
		return false
	}
}

// ModelSpec is a single catalog entry. It is immutable for the lifetime of
// the process: the catalog is built once at startup from the YAML file and
// never mutated in place.
type ModelSpec struct {
	ID                  string     `yaml:"id"`
	DisplayName         string     `yaml:"display_name"`
	EngineKind          EngineKind `yaml:"engine_kind"`
	EndpointPort        uint16     `yaml:"endpoint_port"`
	ContainerName       string     `yaml:"container_name"`
	StartCommand        []string   `yaml:"start_command"`
	StopCommand         []string   `yaml:"stop_command,omitempty"`
	EstimatedMemoryGB   *float64   `yaml:"estimated_memory_gb,omitempty"`
	MaxContextTokens    uint       `yaml:"max_context_tokens,omitempty"`
	SupportsTools       bool       `yaml:"supports_tools,omitempty"`
	ToolCallParser      string     `yaml:"tool_call_parser,omitempty"`
	StartupTimeoutSec   uint       `yaml:"startup_timeout_seconds,omitempty"`
	HealthIntervalSec   uint       `yaml:"health_probe_interval_seconds,omitempty"`
}

// StartupTimeout returns the configured startup deadline as a duration.
func (m *ModelSpec) StartupTimeout() time.Duration {
	return time.Duration(m.StartupTimeoutSec) * time.Second
}

// HealthProbeInterval returns the configured probe cadence as a duration.
func (m *ModelSpec) HealthProbeInterval() time.Duration {
	return time.Duration(m.HealthIntervalSec) * time.Second
}

// Defaults applied to any ModelSpec field left unset in YAML. Mirrors the
// tarsy convention of a single Defaults struct merged onto user config
// (pkg/config/defaults.go) rather than scattering magic numbers across the
// loader.
type Defaults struct {
	StartupTimeoutSeconds     uint    `yaml:"startup_timeout_seconds"`
	HealthProbeIntervalSec    uint    `yaml:"health_probe_interval_seconds"`
	DefaultMinFreeGB          float64 `yaml:"default_min_free_gb"`
	SafetyMarginGB            float64 `yaml:"safety_margin_gb"`
	MemoryReserveGB           float64 `yaml:"memory_reserve_gb"`
	MaxToolIterations         int     `yaml:"max_tool_iterations"`
	ToolResultTruncateChars   int     `yaml:"tool_result_truncate_chars"`
	ContextCompactionRatio    float64 `yaml:"context_compaction_ratio"`
	SummaryKeepLastMessages   int     `yaml:"summary_keep_last_messages"`
	MaxOutputTokens           int     `yaml:"max_output_tokens"`
	ModelCallTimeout          time.Duration `yaml:"model_call_timeout"`
	SearchCallTimeout         time.Duration `yaml:"search_call_timeout"`
	SandboxCallTimeout        time.Duration `yaml:"sandbox_call_timeout"`
	ContainerDriverTimeout    time.Duration `yaml:"container_driver_timeout"`
	HealthProbeTimeout        time.Duration `yaml:"health_probe_timeout"`
}

// DefaultDefaults returns the built-in baseline, analogous to
// config.GetBuiltinConfig() in tarsy: a single source of "what every model
// gets unless it says otherwise."
func DefaultDefaults() Defaults {
	return Defaults{
		StartupTimeoutSeconds:   600,
		HealthProbeIntervalSec:  5,
		DefaultMinFreeGB:        8,
		SafetyMarginGB:          2,
		MemoryReserveGB:         4,
		MaxToolIterations:       10,
		ToolResultTruncateChars: 3000,
		ContextCompactionRatio:  0.7,
		SummaryKeepLastMessages: 6,
		MaxOutputTokens:         4096,
		ModelCallTimeout:        30 * time.Minute,
		SearchCallTimeout:       30 * time.Second,
		SandboxCallTimeout:      60 * time.Second,
		ContainerDriverTimeout:  120 * time.Second,
		HealthProbeTimeout:      2 * time.Second,
	}
}

// ServerConfig groups system-wide settings unrelated to a single model.
type ServerConfig struct {
	HTTPPort         string        `yaml:"http_port"`
	AllowedOrigins   []string      `yaml:"allowed_ws_origins"`
	ModelEndpointHost string       `yaml:"model_endpoint_host"`
	SearchServiceURL string        `yaml:"search_service_url"`
	SandboxServiceURL string       `yaml:"sandbox_service_url"`
}

// YAMLFile mirrors the on-disk shape of models.yaml / models.json. Kept
// separate from Catalog (the resolved, validated form the engine uses) the
// way tarsy splits TarsyYAMLConfig from Config.
type YAMLFile struct {
	System   *ServerConfig `yaml:"system"`
	Defaults *Defaults     `yaml:"defaults"`
	Models   []ModelSpec   `yaml:"models"`
}
