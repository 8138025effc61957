// Package config loads the controller's startup configuration: a small
// YAML document overriding the defaults the CLI flags already set,
// following the same "flags set defaults, file overrides" convention
// the retrieval pack's other Kubernetes controllers use.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config is the controller's full startup configuration. Every field
// has a CLI flag counterpart in cmd/rollouts-controller; a config file
// is optional and only needs to set the fields it wants to override.
type Config struct {
	Namespace       string `json:"namespace,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	MetricsAddr     string `json:"metricsAddr,omitempty"`
	LeaderElect     bool   `json:"leaderElect,omitempty"`
	LeaseNamespace  string `json:"leaseNamespace,omitempty"`
	CDEventsSinkURL string `json:"cdEventsSinkURL,omitempty"`
	GatewayAPI      bool   `json:"gatewayAPI,omitempty"`
}

// Default returns the configuration a freshly started controller uses
// absent any flags or config file. LeaseNamespace is read from the
// POD_NAMESPACE downward-API env var when set, falling back to
// "kulta-system" the way a rollout's HolderID falls back from POD_NAME.
func Default() Config {
	return Config{
		Namespace:      "",
		Workers:        2,
		MetricsAddr:    ":8080",
		LeaderElect:    true,
		LeaseNamespace: envOr("POD_NAMESPACE", "kulta-system"),
		GatewayAPI:     true,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadFile reads a YAML config file at path and merges its set fields
// onto base with "base then override" precedence; cmd/rollouts-controller
// passes the flag-derived config as base, so file values win over flags.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	merged := base
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return merged, nil
}
