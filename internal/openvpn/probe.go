package openvpn

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sync/errgroup"

	"ovpnadmin/internal/shared"
)

const (
	DefaultServiceName = "openvpn-server@server"
	DefaultServerConf  = "/etc/openvpn/server/server.conf"
)

// Commander runs a host command and returns its stdout.
type Commander interface {
	Output(ctx context.Context, name string, args ...string) (string, error)
}

type ExecCommander struct{}

func (ExecCommander) Output(ctx context.Context, name string, args ...string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.String(), err
}

// Prober gathers installation facts. Each probe is independent: a failing probe
// yields its default and never fails the others.
type Prober struct {
	Cmd         Commander
	ServiceName string
	ServerConf  string
	Timeout     time.Duration
	HostInfo    func(ctx context.Context) (*shared.HostFacts, error)
	Logger      *slog.Logger
}

func NewProber(serviceName, serverConf string, logger *slog.Logger) *Prober {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	if serverConf == "" {
		serverConf = DefaultServerConf
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		Cmd:         ExecCommander{},
		ServiceName: serviceName,
		ServerConf:  serverConf,
		Timeout:     10 * time.Second,
		HostInfo:    gopsutilHostFacts,
		Logger:      logger,
	}
}

// Info runs the version, service, install-marker and host probes in parallel.
func (p *Prober) Info(ctx context.Context) shared.ServerInfo {
	info := shared.ServerInfo{
		Version:       "Unknown",
		ServiceStatus: "inactive",
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Probe goroutines report their own failures and always return nil.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.Cmd.Output(gctx, "openvpn", "--version")
		if err != nil {
			p.Logger.Warn("version probe failed", slog.String("error", err.Error()))
			return nil
		}
		if line, _, _ := strings.Cut(out, "\n"); strings.TrimSpace(line) != "" {
			info.Version = strings.TrimSpace(line)
		}
		return nil
	})
	g.Go(func() error {
		out, err := p.Cmd.Output(gctx, "systemctl", "is-active", p.ServiceName)
		if err != nil {
			p.Logger.Warn("service probe failed", slog.String("service", p.ServiceName), slog.String("error", err.Error()))
			return nil
		}
		if s := strings.TrimSpace(out); s != "" {
			info.ServiceStatus = s
		}
		return nil
	})
	g.Go(func() error {
		_, err := os.Stat(p.ServerConf)
		info.Installed = err == nil
		return nil
	})
	if p.HostInfo != nil {
		g.Go(func() error {
			facts, err := p.HostInfo(gctx)
			if err != nil {
				p.Logger.Warn("host probe failed", slog.String("error", err.Error()))
				return nil
			}
			info.Host = facts
			return nil
		})
	}
	_ = g.Wait()

	info.IsRunning = info.ServiceStatus == "active"
	return info
}

func gopsutilHostFacts(ctx context.Context) (*shared.HostFacts, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &shared.HostFacts{
		Hostname:        h.Hostname,
		OS:              h.OS,
		Platform:        h.Platform,
		PlatformVersion: h.PlatformVersion,
		KernelVersion:   h.KernelVersion,
		UptimeSeconds:   h.Uptime,
	}, nil
}
