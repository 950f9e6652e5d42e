package openvpn

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"ovpnadmin/internal/shared"
)

const (
	DefaultPKIDir          = "/etc/openvpn/server/easy-rsa/pki"
	DefaultClientConfigDir = "/root"
)

var ErrCertificateNotFound = errors.New("client certificate not found")

// PKI knows where easy-rsa keeps a client's artifacts and where the script
// writes the generated .ovpn profile.
type PKI struct {
	Dir             string
	ClientConfigDir string

	remove func(string) error
}

func NewPKI(dir, clientConfigDir string) *PKI {
	if dir == "" {
		dir = DefaultPKIDir
	}
	if clientConfigDir == "" {
		clientConfigDir = DefaultClientConfigDir
	}
	return &PKI{Dir: dir, ClientConfigDir: clientConfigDir, remove: os.Remove}
}

func (p *PKI) CertPath(name string) string {
	return filepath.Join(p.Dir, "issued", name+".crt")
}

func (p *PKI) KeyPath(name string) string {
	return filepath.Join(p.Dir, "private", name+".key")
}

func (p *PKI) RequestPath(name string) string {
	return filepath.Join(p.Dir, "reqs", name+".req")
}

func (p *PKI) ConfigPath(name string) string {
	return filepath.Join(p.ClientConfigDir, name+".ovpn")
}

// FindConfig returns the generated profile path if it exists.
func (p *PKI) FindConfig(name string) (string, bool) {
	if !shared.ValidClientName(name) {
		return "", false
	}
	path := p.ConfigPath(name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (p *PKI) HasCertificate(name string) bool {
	if !shared.ValidClientName(name) {
		return false
	}
	_, err := os.Stat(p.CertPath(name))
	return err == nil
}

// StepError is one cleanup step that failed.
type StepError struct {
	Path string
	Err  error
}

func (e StepError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e StepError) Unwrap() error { return e.Err }

// CleanupReport lists what DeleteClientFiles did with each artifact.
type CleanupReport struct {
	Removed []string
	Missing []string
	Failed  []StepError
}

func (r CleanupReport) Partial() bool { return len(r.Failed) > 0 }

// Err joins the failed steps, or returns nil when every step succeeded.
func (r CleanupReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// DeleteClientFiles permanently removes a client's certificate, key, request and
// profile. The certificate must exist; otherwise nothing is touched and
// ErrCertificateNotFound is returned. Each removal is attempted independently and
// failures are collected rather than aborting the sequence.
func (p *PKI) DeleteClientFiles(name string) (CleanupReport, error) {
	if !shared.ValidClientName(name) {
		return CleanupReport{}, shared.ErrInvalidClientName
	}
	if !p.HasCertificate(name) {
		return CleanupReport{}, ErrCertificateNotFound
	}

	remove := p.remove
	if remove == nil {
		remove = os.Remove
	}

	var rep CleanupReport
	for _, path := range []string{p.CertPath(name), p.KeyPath(name), p.RequestPath(name), p.ConfigPath(name)} {
		err := remove(path)
		switch {
		case err == nil:
			rep.Removed = append(rep.Removed, path)
		case errors.Is(err, fs.ErrNotExist):
			rep.Missing = append(rep.Missing, path)
		default:
			rep.Failed = append(rep.Failed, StepError{Path: path, Err: err})
		}
	}
	return rep, nil
}
