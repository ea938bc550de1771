package config

import "os"

// expandEnv expands ${VAR} / $VAR references in raw YAML bytes before
// unmarshalling, the same pass tarsy's pkg/config/envexpand.go runs over
// tarsy.yaml. Missing variables expand to empty string; validation is
// responsible for catching fields that end up empty as a result.
func expandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
