package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadEnvFileCandidates loads variables from the env file named by
// AGENTTRAIL_ENV_FILE, falling back to the user-level locations. Values
// already present in the process environment always win.
func LoadEnvFileCandidates() {
	if explicit := strings.TrimSpace(os.Getenv("AGENTTRAIL_ENV_FILE")); explicit != "" {
		_ = loadEnvFile(explicit)
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	_ = loadEnvFile(filepath.Join(home, ".config", "agenttrail", "env"))
	_ = loadEnvFile(filepath.Join(home, ".agenttrail", "env"))
}

// loadEnvFile applies KEY=VALUE lines from path. Blank lines and #
// comments are skipped, a leading "export " is tolerated, and single or
// double quotes around a value are stripped.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = val[1 : len(val)-1]
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
	return nil
}
