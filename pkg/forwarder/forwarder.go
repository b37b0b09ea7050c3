// Package forwarder implements the reconciliation engine: it merges
// manual and detected ports, compares the result against the last
// applied state and drives the portproxy table when something changed.
package forwarder

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/wsl-tools/wslportd/pkg/api"
	"github.com/wsl-tools/wslportd/pkg/config"
	"github.com/wsl-tools/wslportd/pkg/portset"
)

// PortDetector probes the discovery sources. Probe failures are handled
// inside the detector; both sets are always returned.
type PortDetector interface {
	DetectPorts(ctx context.Context) (pm2Ports, caddyPorts portset.Set)
}

// RuleApplier drives the host NAT primitive.
type RuleApplier interface {
	Apply(ctx context.Context, ip net.IP, ports []uint16) error
	Show(ctx context.Context) (string, error)
}

// AddressResolver returns the guest's current IPv4 address.
type AddressResolver func(ctx context.Context) (net.IP, error)

type Forwarder struct {
	ConfigPath string
	Interval   time.Duration

	detector PortDetector
	rules    RuleApplier
	resolve  AddressResolver

	mu    sync.RWMutex
	state api.State

	syncCh chan struct{}

	// last applied pair; nil IP means nothing was applied yet
	lastIP    net.IP
	lastPorts portset.Set
}

func New(configPath string, d PortDetector, r RuleApplier, resolve AddressResolver) *Forwarder {
	return &Forwarder{
		ConfigPath: configPath,
		Interval:   5 * time.Second,
		detector:   d,
		rules:      r,
		resolve:    resolve,
		syncCh:     make(chan struct{}, 1),
	}
}

// detectAndPersist reloads the registry, replaces the detected sets and
// writes the result back.
func (f *Forwarder) detectAndPersist(ctx context.Context) (*config.PortsConfig, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	pm2Ports, caddyPorts := f.detector.DetectPorts(ctx)
	cfg.SetDetectedPorts(pm2Ports, caddyPorts)
	if err := config.Save(f.ConfigPath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// State returns the last applied forwarding state for the control API.
func (f *Forwarder) State() api.State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// TriggerSync wakes the daemon loop for an immediate cycle. A cycle
// already pending is enough; extra triggers are dropped.
func (f *Forwarder) TriggerSync() {
	select {
	case f.syncCh <- struct{}{}:
	default:
	}
}

func (f *Forwarder) setState(ip net.IP, ports []uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = api.State{
		Address:  ip.String(),
		Ports:    ports,
		SyncedAt: time.Now(),
	}
}
