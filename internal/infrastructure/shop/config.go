// Package shop provides multi-shop registry, configuration, and per-shop
// database management. Every storefront domain the engine serves is a shop
// with its own record store.
package shop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the per-shop configuration loaded from the registry.
type Config struct {
	Domain         string `json:"domain"`
	Status         string `json:"status"` // "active" or "disabled"
	SQLitePath     string `json:"sqlitePath,omitempty"`
	TursoEnabled   bool   `json:"tursoEnabled,omitempty"`
	TursoDatabase  string `json:"tursoDatabase,omitempty"`
	TursoToken     string `json:"tursoToken,omitempty"`
	JWTSecret      string `json:"jwtSecret"`
	DiscountPrefix string `json:"discountPrefix,omitempty"`
	EmailFrom      string `json:"emailFrom,omitempty"`
	EmailFromName  string `json:"emailFromName,omitempty"`
}

// IsActive reports whether the shop accepts storefront traffic.
func (c *Config) IsActive() bool {
	return c.Status == "active"
}

// Registry is the on-disk index of every shop the engine serves.
type Registry struct {
	Shops map[string]*Config `json:"shops"` // domain -> config
}

// LoadRegistry reads the shop registry from <configPath>/shops.json.
func LoadRegistry(configPath string) (*Registry, error) {
	path := filepath.Join(configPath, "shops.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{Shops: make(map[string]*Config)}, nil
		}
		return nil, fmt.Errorf("failed to read shop registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse shop registry: %w", err)
	}
	if registry.Shops == nil {
		registry.Shops = make(map[string]*Config)
	}

	for domain, cfg := range registry.Shops {
		cfg.Domain = domain
		if cfg.SQLitePath == "" && !cfg.TursoEnabled {
			cfg.SQLitePath = filepath.Join(configPath, "db", domain+".db")
		}
	}

	return &registry, nil
}

// SaveRegistry writes the registry back to disk. Used by provisioning
// tooling, never by the engine's request path.
func SaveRegistry(configPath string, registry *Registry) error {
	path := filepath.Join(configPath, "shops.json")

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal shop registry: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
