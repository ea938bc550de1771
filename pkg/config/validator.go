package config

import "fmt"

// validate enforces every invariant spec §4.2 lists for catalog load:
// unique id, unique container_name, unique endpoint_port, port range,
// non-empty start_command, positive startup timeout. Fail-fast in
// declaration order, mirroring tarsy's pkg/config/validator.go style.
func validate(models []ModelSpec) error {
	seenID := make(map[string]bool, len(models))
	seenContainer := make(map[string]bool, len(models))
	seenPort := make(map[uint16]bool, len(models))

	for _, m := range models {
		if m.ID == "" {
			return newValidationError("", "id", "must not be empty")
		}
		if seenID[m.ID] {
			return newValidationError(m.ID, "id", "duplicate model id")
		}
		seenID[m.ID] = true

		if m.ContainerName == "" {
			return newValidationError(m.ID, "container_name", "must not be empty")
		}
		if seenContainer[m.ContainerName] {
			return newValidationError(m.ID, "container_name", fmt.Sprintf("duplicate container name %q", m.ContainerName))
		}
		seenContainer[m.ContainerName] = true

		if m.EndpointPort == 0 {
			return newValidationError(m.ID, "endpoint_port", "must be in range [1, 65535]")
		}
		if seenPort[m.EndpointPort] {
			return newValidationError(m.ID, "endpoint_port", fmt.Sprintf("duplicate endpoint port %d", m.EndpointPort))
		}
		seenPort[m.EndpointPort] = true

		if len(m.StartCommand) == 0 {
			return newValidationError(m.ID, "start_command", "must not be empty")
		}
		if m.StartupTimeoutSec == 0 {
			return newValidationError(m.ID, "startup_timeout_seconds", "must be greater than 0")
		}
	}

	return nil
}
