package forwarder

import (
	"context"
	"fmt"
	"net"

	"github.com/wsl-tools/wslportd/pkg/config"
)

// StatusReport is the material the status subcommand displays.
type StatusReport struct {
	ConfigPath  string
	Address     net.IP
	ManualPorts []uint16
	PM2Ports    []uint16
	CaddyPorts  []uint16
	AllPorts    []uint16
	Rules       string
}

// Status runs one detection pass, persists it and collects the current
// address, port sets and portproxy table. A failing Show does not fail
// the report; its error is embedded as text.
func (f *Forwarder) Status(ctx context.Context) (*StatusReport, error) {
	cfg, err := f.detectAndPersist(ctx)
	if err != nil {
		return nil, err
	}

	ip, err := f.resolve(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := f.rules.Show(ctx)
	if err != nil {
		rules = fmt.Sprintf("Could not fetch netsh mappings: %v", err)
	}

	return &StatusReport{
		ConfigPath:  f.ConfigPath,
		Address:     ip,
		ManualPorts: cfg.ManualPorts.Sorted(),
		PM2Ports:    cfg.PM2Ports.Sorted(),
		CaddyPorts:  cfg.CaddyPorts.Sorted(),
		AllPorts:    cfg.AllPorts().Sorted(),
		Rules:       rules,
	}, nil
}

// Add inserts port into the manual set, persists and resynchronizes.
// It reports whether the port was newly added.
func (f *Forwarder) Add(ctx context.Context, port uint16) (bool, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return false, err
	}

	inserted := cfg.AddManualPort(port)
	pm2Ports, caddyPorts := f.detector.DetectPorts(ctx)
	cfg.SetDetectedPorts(pm2Ports, caddyPorts)
	if err := config.Save(f.ConfigPath, cfg); err != nil {
		return false, err
	}

	return inserted, f.applyConfig(ctx, cfg)
}

// Remove drops port from the manual set, persists and resynchronizes.
// It reports whether the port was present.
func (f *Forwarder) Remove(ctx context.Context, port uint16) (bool, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return false, err
	}

	removed := cfg.RemoveManualPort(port)
	pm2Ports, caddyPorts := f.detector.DetectPorts(ctx)
	cfg.SetDetectedPorts(pm2Ports, caddyPorts)
	if err := config.Save(f.ConfigPath, cfg); err != nil {
		return false, err
	}

	return removed, f.applyConfig(ctx, cfg)
}

// Sync re-detects, persists and reapplies all rules without touching
// the manual set.
func (f *Forwarder) Sync(ctx context.Context) error {
	cfg, err := f.detectAndPersist(ctx)
	if err != nil {
		return err
	}
	return f.applyConfig(ctx, cfg)
}

func (f *Forwarder) applyConfig(ctx context.Context, cfg *config.PortsConfig) error {
	ip, err := f.resolve(ctx)
	if err != nil {
		return err
	}
	ports := cfg.AllPorts().Sorted()
	if err := f.rules.Apply(ctx, ip, ports); err != nil {
		return err
	}
	f.setState(ip, ports)
	return nil
}
