package wsl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wsl-tools/wslportd/pkg/iproute2"
)

func TestFirstIPv4(t *testing.T) {
	tests := []struct {
		name  string
		out   string
		ip    string
		found bool
	}{
		{"single address", "172.20.240.2\n", "172.20.240.2", true},
		{"multiple addresses", "172.20.240.2 10.0.3.1\n", "172.20.240.2", true},
		{"ipv6 first", "fe80::215:5dff:fe34:1a2b 172.20.240.2\n", "172.20.240.2", true},
		{"no addresses", "\n", "", false},
		{"garbage", "not-an-address also.not.one\n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, ok := firstIPv4(tt.out)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.ip, ip.String())
			}
		})
	}
}

func TestGlobalIPv4(t *testing.T) {
	addrs := iproute2.Addresses{
		{
			IfName: "lo",
			AddrInfos: []iproute2.AddrInfo{
				{Family: "inet", Local: "127.0.0.1", Scope: "host"},
			},
		},
		{
			IfName: "eth0",
			AddrInfos: []iproute2.AddrInfo{
				{Family: "inet6", Local: "fe80::1", Scope: "link"},
				{Family: "inet", Local: "172.20.240.2", Scope: "global"},
			},
		},
	}

	ip, err := globalIPv4(addrs)
	require.NoError(t, err)
	assert.Equal(t, "172.20.240.2", ip.String())
}

func eth0Addresses(local string) iproute2.Addresses {
	return iproute2.Addresses{
		{
			IfName: "eth0",
			AddrInfos: []iproute2.AddrInfo{
				{Family: "inet", Local: local, Scope: "global"},
			},
		},
	}
}

func TestGuestIPv4PrefersHostname(t *testing.T) {
	r := &Resolver{
		runHostname: func(_ context.Context) ([]byte, error) {
			return []byte("172.20.240.2\n"), nil
		},
		getAddresses: func(_ context.Context) (iproute2.Addresses, error) {
			t.Fatal("fallback must not run when hostname -I yields an address")
			return nil, nil
		},
	}

	ip, err := r.GuestIPv4(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "172.20.240.2", ip.String())
}

func TestGuestIPv4FallsBackWhenHostnameFails(t *testing.T) {
	r := &Resolver{
		runHostname: func(_ context.Context) ([]byte, error) {
			return nil, errors.New("exec: \"hostname\": executable file not found in $PATH")
		},
		getAddresses: func(_ context.Context) (iproute2.Addresses, error) {
			return eth0Addresses("172.20.250.9"), nil
		},
	}

	ip, err := r.GuestIPv4(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "172.20.250.9", ip.String())
}

func TestGuestIPv4FallsBackWhenNoIPv4Token(t *testing.T) {
	r := &Resolver{
		runHostname: func(_ context.Context) ([]byte, error) {
			return []byte("fe80::215:5dff:fe34:1a2b\n"), nil
		},
		getAddresses: func(_ context.Context) (iproute2.Addresses, error) {
			return eth0Addresses("172.20.250.9"), nil
		},
	}

	ip, err := r.GuestIPv4(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "172.20.250.9", ip.String())
}

func TestGuestIPv4BothSourcesFail(t *testing.T) {
	r := &Resolver{
		runHostname: func(_ context.Context) ([]byte, error) {
			return nil, errors.New("hostname failed")
		},
		getAddresses: func(_ context.Context) (iproute2.Addresses, error) {
			return nil, errors.New("ip failed")
		},
	}

	_, err := r.GuestIPv4(context.TODO())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not resolve guest IPv4 address")
}

func TestGlobalIPv4NoneConfigured(t *testing.T) {
	addrs := iproute2.Addresses{
		{
			IfName: "lo",
			AddrInfos: []iproute2.AddrInfo{
				{Family: "inet", Local: "127.0.0.1", Scope: "host"},
			},
		},
	}

	_, err := globalIPv4(addrs)
	assert.Error(t, err)
}
