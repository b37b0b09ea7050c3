// Package portproxy drives the Windows netsh portproxy table through
// powershell.exe reached from inside the WSL guest.
package portproxy

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Known powershell.exe locations under the default C: drive mount.
var powershellCandidates = []string{
	"/mnt/c/Windows/System32/WindowsPowerShell/v1.0/powershell.exe",
	"/mnt/c/WINDOWS/System32/WindowsPowerShell/v1.0/powershell.exe",
}

type Proxy struct {
	PowerShellPath string

	run func(ctx context.Context, powershellPath, command string) (string, error)
}

func New() *Proxy {
	return &Proxy{
		PowerShellPath: findPowerShell(),
		run:            runPowerShell,
	}
}

func findPowerShell() string {
	for _, path := range powershellCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	// fall back to the caller's PATH
	return "powershell.exe"
}

// Apply brings the portproxy table in line with ports, forwarding each
// listen port on the wildcard address to the same port on ip. Per port
// the existing rule is deleted first so the add never collides; the
// delete outcome is ignored because the rule may legitimately not
// exist and netsh has no upsert. An add failure aborts the remaining
// ports.
func (p *Proxy) Apply(ctx context.Context, ip net.IP, ports []uint16) error {
	for _, port := range ports {
		deleteCmd := fmt.Sprintf(
			"netsh interface portproxy delete v4tov4 listenport=%d listenaddress=0.0.0.0",
			port,
		)
		if _, err := p.run(ctx, p.PowerShellPath, deleteCmd); err != nil {
			logrus.WithError(err).Debugf("delete of portproxy rule for port %d failed", port)
		}

		addCmd := fmt.Sprintf(
			"netsh interface portproxy add v4tov4 listenport=%d listenaddress=0.0.0.0 connectport=%d connectaddress=%s",
			port, port, ip,
		)
		if _, err := p.run(ctx, p.PowerShellPath, addCmd); err != nil {
			return fmt.Errorf("failed to add portproxy rule for port %d: %w", port, err)
		}
	}

	return nil
}

// Show returns the current portproxy table as netsh prints it.
func (p *Proxy) Show(ctx context.Context) (string, error) {
	return p.run(ctx, p.PowerShellPath, "netsh interface portproxy show v4tov4")
}

func runPowerShell(ctx context.Context, powershellPath, command string) (string, error) {
	cmd := exec.CommandContext(ctx, powershellPath,
		"-NoProfile",
		"-NonInteractive",
		"-Command", command,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("powershell command %q failed (%v): %s",
			command, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
