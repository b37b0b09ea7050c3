// Package iproute2 parses the JSON output of `ip -j addr show`.
package iproute2

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

type AddrInfo struct {
	Family    string `json:"family"`
	Local     string `json:"local"`
	PrefixLen int    `json:"prefixlen"`
	Scope     string `json:"scope"`
	Label     string `json:"label"`
}

type Interface struct {
	IfIndex   int        `json:"ifindex"`
	IfName    string     `json:"ifname"`
	Operstate string     `json:"operstate"`
	AddrInfos []AddrInfo `json:"addr_info"`
}

type Addresses = []Interface

func UnmarshalAddresses(jsonAddrs []byte) (Addresses, error) {
	var addrs = Addresses{}

	err := json.Unmarshal(jsonAddrs, &addrs)
	if err != nil {
		return nil, err
	}

	return addrs, nil
}

// GetAddresses lists the IPv4 addresses configured in the guest.
func GetAddresses(ctx context.Context) (Addresses, error) {
	ip, err := exec.LookPath("ip")
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, ip, "-j", "-4", "addr", "show")
	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to start %v: %w", cmd.Args, err)
	}

	addrs, err := UnmarshalAddresses(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	return addrs, nil
}
