package portproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner captures every powershell command and lets the test
// fail selected ones.
type recordingRunner struct {
	commands []string
	failOn   func(command string) error
}

func (r *recordingRunner) run(_ context.Context, _, command string) (string, error) {
	r.commands = append(r.commands, command)
	if r.failOn != nil {
		if err := r.failOn(command); err != nil {
			return "", err
		}
	}
	return "", nil
}

func newTestProxy(rec *recordingRunner) *Proxy {
	return &Proxy{PowerShellPath: "powershell.exe", run: rec.run}
}

func TestApplyDeleteThenAddPerPort(t *testing.T) {
	rec := &recordingRunner{}
	p := newTestProxy(rec)

	err := p.Apply(context.TODO(), net.ParseIP("172.20.240.2"), []uint16{80, 443})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"netsh interface portproxy delete v4tov4 listenport=80 listenaddress=0.0.0.0",
		"netsh interface portproxy add v4tov4 listenport=80 listenaddress=0.0.0.0 connectport=80 connectaddress=172.20.240.2",
		"netsh interface portproxy delete v4tov4 listenport=443 listenaddress=0.0.0.0",
		"netsh interface portproxy add v4tov4 listenport=443 listenaddress=0.0.0.0 connectport=443 connectaddress=172.20.240.2",
	}, rec.commands)
}

func TestApplyIgnoresDeleteFailure(t *testing.T) {
	rec := &recordingRunner{
		failOn: func(command string) error {
			if strings.Contains(command, "portproxy delete") {
				return errors.New("The specified entry was not found.")
			}
			return nil
		},
	}
	p := newTestProxy(rec)

	err := p.Apply(context.TODO(), net.ParseIP("172.20.240.2"), []uint16{80})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(rec.commands))
}

func TestApplyAbortsOnAddFailure(t *testing.T) {
	rec := &recordingRunner{
		failOn: func(command string) error {
			if strings.Contains(command, "portproxy add") && strings.Contains(command, "listenport=80") {
				return errors.New("access denied")
			}
			return nil
		},
	}
	p := newTestProxy(rec)

	err := p.Apply(context.TODO(), net.ParseIP("172.20.240.2"), []uint16{80, 443})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 80")

	// nothing may be issued for port 443 after the failed add
	for _, cmd := range rec.commands {
		assert.NotContains(t, cmd, "listenport=443")
	}
	assert.Equal(t, 2, len(rec.commands))
}

func TestApplyNoPorts(t *testing.T) {
	rec := &recordingRunner{}
	p := newTestProxy(rec)

	require.NoError(t, p.Apply(context.TODO(), net.ParseIP("172.20.240.2"), nil))
	assert.Equal(t, 0, len(rec.commands))
}

func TestShow(t *testing.T) {
	p := &Proxy{
		PowerShellPath: "powershell.exe",
		run: func(_ context.Context, _, command string) (string, error) {
			assert.Equal(t, "netsh interface portproxy show v4tov4", command)
			return "listen on ipv4: connect to ipv4:\n", nil
		},
	}

	out, err := p.Show(context.TODO())
	require.NoError(t, err)
	assert.Contains(t, out, "listen on ipv4")
}

func TestShowFailure(t *testing.T) {
	p := &Proxy{
		PowerShellPath: "powershell.exe",
		run: func(_ context.Context, _, _ string) (string, error) {
			return "", fmt.Errorf("powershell not found")
		},
	}

	_, err := p.Show(context.TODO())
	assert.Error(t, err)
}
