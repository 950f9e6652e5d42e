package openvpn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ovpnadmin/internal/shared"
)

type stubCommander struct {
	outputs map[string]string
	errs    map[string]error
}

func (s stubCommander) Output(_ context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	if err := s.errs[key]; err != nil {
		return s.outputs[key], err
	}
	return s.outputs[key], nil
}

func newTestProber(t *testing.T, cmd Commander, installed bool) *Prober {
	t.Helper()
	conf := filepath.Join(t.TempDir(), "server.conf")
	if installed {
		assert.NoError(t, os.WriteFile(conf, []byte("port 1194\n"), 0o600))
	}
	p := NewProber("openvpn-server@server", conf, nil)
	p.Cmd = cmd
	p.HostInfo = nil
	return p
}

func healthyCommander() stubCommander {
	return stubCommander{
		outputs: map[string]string{
			"openvpn --version":                          "OpenVPN 2.6.8 x86_64-pc-linux-gnu [SSL (OpenSSL)]\nlibrary versions: OpenSSL 3.0.11\n",
			"systemctl is-active openvpn-server@server": "active\n",
		},
		errs: map[string]error{},
	}
}

func TestProberAllHealthy(t *testing.T) {
	info := newTestProber(t, healthyCommander(), true).Info(context.Background())
	assert.Equal(t, shared.ServerInfo{
		Installed:     true,
		Version:       "OpenVPN 2.6.8 x86_64-pc-linux-gnu [SSL (OpenSSL)]",
		ServiceStatus: "active",
		IsRunning:     true,
	}, info)
}

func TestProberToleratesSingleFailure(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		cmd := healthyCommander()
		cmd.errs["openvpn --version"] = errors.New("exec: \"openvpn\": executable file not found")
		info := newTestProber(t, cmd, true).Info(context.Background())
		assert.Equal(t, "Unknown", info.Version)
		assert.Equal(t, "active", info.ServiceStatus)
		assert.True(t, info.IsRunning)
		assert.True(t, info.Installed)
	})
	t.Run("service", func(t *testing.T) {
		cmd := healthyCommander()
		cmd.outputs["systemctl is-active openvpn-server@server"] = "failed\n"
		cmd.errs["systemctl is-active openvpn-server@server"] = errors.New("exit status 3")
		info := newTestProber(t, cmd, true).Info(context.Background())
		assert.Equal(t, "inactive", info.ServiceStatus)
		assert.False(t, info.IsRunning)
		assert.True(t, strings.HasPrefix(info.Version, "OpenVPN 2.6.8"))
		assert.True(t, info.Installed)
	})
	t.Run("marker", func(t *testing.T) {
		info := newTestProber(t, healthyCommander(), false).Info(context.Background())
		assert.False(t, info.Installed)
		assert.Equal(t, "active", info.ServiceStatus)
		assert.True(t, strings.HasPrefix(info.Version, "OpenVPN 2.6.8"))
	})
}

func TestProberHostFacts(t *testing.T) {
	p := newTestProber(t, healthyCommander(), true)
	p.HostInfo = func(context.Context) (*shared.HostFacts, error) {
		return &shared.HostFacts{Hostname: "vpn-1", UptimeSeconds: 42}, nil
	}
	info := p.Info(context.Background())
	if assert.NotNil(t, info.Host) {
		assert.Equal(t, "vpn-1", info.Host.Hostname)
	}

	p.HostInfo = func(context.Context) (*shared.HostFacts, error) { return nil, errors.New("no /proc") }
	info = p.Info(context.Background())
	assert.Nil(t, info.Host)
	assert.True(t, info.IsRunning)
}
