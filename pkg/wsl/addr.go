// Package wsl resolves the guest side of the forwarding: the IPv4
// address Windows can reach this WSL instance on.
package wsl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wsl-tools/wslportd/pkg/iproute2"
)

type Resolver struct {
	runHostname  func(ctx context.Context) ([]byte, error)
	getAddresses func(ctx context.Context) (iproute2.Addresses, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		runHostname:  runHostname,
		getAddresses: iproute2.GetAddresses,
	}
}

// GuestIPv4 returns the current IPv4 address of the guest. The address
// changes across WSL restarts, so callers must not cache it beyond one
// command invocation. `hostname -I` is tried first; if it is missing
// or yields no IPv4 token, `ip -j -4 addr show` is parsed instead.
func (r *Resolver) GuestIPv4(ctx context.Context) (net.IP, error) {
	out, err := r.runHostname(ctx)
	if err == nil {
		if ip, ok := firstIPv4(string(out)); ok {
			return ip, nil
		}
		logrus.Debug("no IPv4 token in hostname -I output; falling back to ip addr show")
	} else {
		logrus.WithError(err).Debug("hostname -I failed; falling back to ip addr show")
	}

	addrs, err := r.getAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not resolve guest IPv4 address: %w", err)
	}
	return globalIPv4(addrs)
}

// GuestIPv4 resolves with the default command invocations.
func GuestIPv4(ctx context.Context) (net.IP, error) {
	return NewResolver().GuestIPv4(ctx)
}

func runHostname(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "hostname", "-I").Output()
}

func firstIPv4(out string) (net.IP, bool) {
	for _, token := range strings.Fields(out) {
		if ip := net.ParseIP(token); ip != nil && ip.To4() != nil {
			return ip.To4(), true
		}
	}
	return nil, false
}

func globalIPv4(addrs iproute2.Addresses) (net.IP, error) {
	for _, intf := range addrs {
		for _, info := range intf.AddrInfos {
			if info.Family != "inet" || info.Scope != "global" {
				continue
			}
			if ip := net.ParseIP(info.Local); ip != nil && ip.To4() != nil {
				return ip.To4(), nil
			}
		}
	}
	return nil, errors.New("no global IPv4 address configured in the guest")
}
