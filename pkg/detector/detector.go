// Package detector discovers ports that should be forwarded by probing
// a local pm2 instance and the Caddy admin endpoint.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wsl-tools/wslportd/pkg/portset"
)

const (
	defaultCaddyAdminURL = "http://localhost:2019/config/"
	caddyTimeout         = 3 * time.Second
)

type Detector struct {
	// PM2Path is the pm2 executable invoked with "jlist".
	PM2Path string
	// AdminURL is the Caddy admin config endpoint.
	AdminURL string
	// HTTPClient carries the probe timeout.
	HTTPClient *http.Client
}

func New() *Detector {
	return &Detector{
		PM2Path:    "pm2",
		AdminURL:   defaultCaddyAdminURL,
		HTTPClient: &http.Client{Timeout: caddyTimeout},
	}
}

// DetectPorts runs both probes concurrently. Probe failures are logged
// and degrade to an empty set; the other probe is unaffected.
func (d *Detector) DetectPorts(ctx context.Context) (pm2Ports, caddyPorts portset.Set) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		pm2Ports, err = d.detectPM2Ports(ctx)
		if err != nil {
			logrus.WithError(err).Debug("pm2 detection failed")
			pm2Ports = portset.New()
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		caddyPorts, err = d.detectCaddyPorts(ctx)
		if err != nil {
			logrus.WithError(err).Debug("caddy detection failed")
			caddyPorts = portset.New()
		}
	}()

	wg.Wait()
	return pm2Ports, caddyPorts
}

func (d *Detector) detectPM2Ports(ctx context.Context) (portset.Set, error) {
	cmd := exec.CommandContext(ctx, d.PM2Path, "jlist")
	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to execute %v: %w", cmd.Args, err)
	}

	var doc any
	if err := json.Unmarshal(stdout, &doc); err != nil {
		return nil, fmt.Errorf("invalid pm2 json: %w", err)
	}

	ports := portset.New()
	collectPorts(doc, ports)
	return ports, nil
}

func (d *Detector) detectCaddyPorts(ctx context.Context) (portset.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.AdminURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed requesting caddy config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("caddy config returned status %s", resp.Status)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid caddy config json: %w", err)
	}

	ports := portset.New()
	collectPorts(doc, ports)
	return ports, nil
}
