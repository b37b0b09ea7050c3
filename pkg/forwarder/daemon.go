package forwarder

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Run polls guest address and port sets on the configured interval and
// reapplies the portproxy rules whenever either changed. A failure to
// resolve the address or to apply rules ends the run; the daemon is
// expected to be restarted by its supervisor.
func (f *Forwarder) Run(ctx context.Context) error {
	logrus.Infof("starting daemon; poll interval = %s", f.Interval)

	for {
		if err := f.reconcile(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.Interval):
		case <-f.syncCh:
			logrus.Debug("immediate sync requested")
		}
	}
}

// reconcile runs one cycle: reload registry, probe sources, persist,
// resolve the guest address and reapply rules if the (address, ports)
// pair differs from the last applied one.
func (f *Forwarder) reconcile(ctx context.Context) error {
	cfg, err := f.detectAndPersist(ctx)
	if err != nil {
		return err
	}

	ip, err := f.resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve guest address: %w", err)
	}
	ports := cfg.AllPorts()

	changed := f.lastIP == nil || !ip.Equal(f.lastIP) || !ports.Equal(f.lastPorts)
	if !changed {
		return nil
	}

	sorted := ports.Sorted()
	logrus.WithFields(logrus.Fields{"ip": ip, "ports": sorted}).Info("change detected; syncing portproxy rules")
	if err := f.rules.Apply(ctx, ip, sorted); err != nil {
		return fmt.Errorf("failed to apply portproxy rules: %w", err)
	}

	f.lastIP = ip
	f.lastPorts = ports
	f.setState(ip, sorted)
	return nil
}
