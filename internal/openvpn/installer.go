// Package openvpn wraps the collaborators that own VPN state: the installer
// script, the PKI directory, the management socket and the host probes.
package openvpn

import (
	"context"
	"strconv"

	"ovpnadmin/internal/script"
)

// Installer is the set of operations delegated to openvpn-install.sh.
// On failure the returned error is a *script.Error carrying the script output.
type Installer interface {
	ListClients(ctx context.Context) (script.Result, error)
	AddClient(ctx context.Context, opts AddClientOptions) (script.Result, error)
	RevokeClient(ctx context.Context, name string) (script.Result, error)
	RenewClient(ctx context.Context, name string, certDays int) (script.Result, error)
	Status(ctx context.Context) (script.Result, error)
	RenewServer(ctx context.Context, certDays int) (script.Result, error)
}

type AddClientOptions struct {
	Name     string
	Password string
	CertDays int // zero leaves the script default
}

// ScriptInstaller implements Installer by building argument lists for a script.Runner.
// Callers validate names and day counts before calling.
type ScriptInstaller struct {
	Runner script.Runner
}

func NewScriptInstaller(r script.Runner) *ScriptInstaller {
	return &ScriptInstaller{Runner: r}
}

func (s *ScriptInstaller) ListClients(ctx context.Context) (script.Result, error) {
	return s.run(ctx, "client", "list", "--format", "json")
}

func (s *ScriptInstaller) AddClient(ctx context.Context, opts AddClientOptions) (script.Result, error) {
	args := []string{"client", "add", opts.Name}
	if opts.Password != "" {
		args = append(args, "--password", opts.Password)
	}
	return s.run(ctx, withCertDays(args, opts.CertDays)...)
}

func (s *ScriptInstaller) RevokeClient(ctx context.Context, name string) (script.Result, error) {
	return s.run(ctx, "client", "revoke", name)
}

func (s *ScriptInstaller) RenewClient(ctx context.Context, name string, certDays int) (script.Result, error) {
	return s.run(ctx, withCertDays([]string{"client", "renew", name}, certDays)...)
}

func (s *ScriptInstaller) Status(ctx context.Context) (script.Result, error) {
	return s.run(ctx, "server", "status", "--format", "json")
}

func (s *ScriptInstaller) RenewServer(ctx context.Context, certDays int) (script.Result, error) {
	return s.run(ctx, withCertDays([]string{"server", "renew"}, certDays)...)
}

func (s *ScriptInstaller) run(ctx context.Context, args ...string) (script.Result, error) {
	res := s.Runner.Run(ctx, args...)
	return res, res.Err()
}

func withCertDays(args []string, days int) []string {
	if days > 0 {
		args = append(args, "--cert-days", strconv.Itoa(days))
	}
	return args
}
