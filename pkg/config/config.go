// Package config persists the set of forwarded ports across runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/wsl-tools/wslportd/pkg/portset"
)

// PortsConfig tracks manually configured ports alongside the two
// most recently detected port sets. The same port may appear in more
// than one set; AllPorts deduplicates.
type PortsConfig struct {
	ManualPorts portset.Set
	PM2Ports    portset.Set
	CaddyPorts  portset.Set
}

// fileFormat is the on-disk TOML shape. Sets are stored as sorted arrays.
type fileFormat struct {
	ManualPorts []uint16 `toml:"manual_ports"`
	PM2Ports    []uint16 `toml:"pm2_ports"`
	CaddyPorts  []uint16 `toml:"caddy_ports"`
}

func Default() *PortsConfig {
	return &PortsConfig{
		ManualPorts: portset.New(),
		PM2Ports:    portset.New(),
		CaddyPorts:  portset.New(),
	}
}

// AllPorts returns the union of manual and detected ports.
func (c *PortsConfig) AllPorts() portset.Set {
	return portset.Union(c.ManualPorts, c.PM2Ports, c.CaddyPorts)
}

// AddManualPort inserts port into the manual set and reports whether it
// was newly added.
func (c *PortsConfig) AddManualPort(port uint16) bool {
	return c.ManualPorts.Insert(port)
}

// RemoveManualPort removes port from the manual set and reports whether
// it was present.
func (c *PortsConfig) RemoveManualPort(port uint16) bool {
	return c.ManualPorts.Remove(port)
}

// SetDetectedPorts replaces both detected sets wholesale. Ports that a
// source stopped reporting do not survive the replacement.
func (c *PortsConfig) SetDetectedPorts(pm2Ports, caddyPorts portset.Set) {
	c.PM2Ports = pm2Ports
	c.CaddyPorts = caddyPorts
}

func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve config directory: %w", err)
	}
	return filepath.Join(base, "wsl-port-forwarder"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ports.toml"), nil
}

// Load reads the persisted config. A missing file yields the default
// empty config; an unreadable or malformed file is an error.
func Load(path string) (*PortsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed reading config from %s: %w", path, err)
	}

	var ff fileFormat
	if err := toml.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("failed parsing toml from %s: %w", path, err)
	}

	return &PortsConfig{
		ManualPorts: portset.New(ff.ManualPorts...),
		PM2Ports:    portset.New(ff.PM2Ports...),
		CaddyPorts:  portset.New(ff.CaddyPorts...),
	}, nil
}

// Save writes the config, creating the parent directory if needed.
func Save(path string, cfg *PortsConfig) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed creating config dir %s: %w", dir, err)
		}
	}

	ff := fileFormat{
		ManualPorts: cfg.ManualPorts.Sorted(),
		PM2Ports:    cfg.PM2Ports.Sorted(),
		CaddyPorts:  cfg.CaddyPorts.Sorted(),
	}
	raw, err := toml.Marshal(ff)
	if err != nil {
		return fmt.Errorf("failed serializing config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed writing config %s: %w", path, err)
	}
	return nil
}
