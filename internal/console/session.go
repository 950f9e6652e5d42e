package console

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"ovpnadmin/internal/shared"
)

// Session is the stored login.
type Session struct {
	Token string
	User  shared.UserInfo
}

// SessionManager owns the session and its on-disk copy. It is the TokenSource
// of the Client it creates.
type SessionManager struct {
	path string
	api  *Client

	mu  sync.RWMutex
	cfg shared.ConsoleConfig
}

// OpenSession loads the session file at path (a missing file is an empty
// session) and builds a Client against the stored server URL.
func OpenSession(path string, notify Notifier) (*SessionManager, error) {
	cfg, err := shared.LoadConsoleConfig(path)
	if err != nil {
		return nil, err
	}
	m := &SessionManager{path: path, cfg: *cfg}
	m.api = NewClient(cfg.ServerURL, time.Duration(cfg.TimeoutSeconds)*time.Second, m, notify)
	return m, nil
}

func (m *SessionManager) Client() *Client { return m.api }

// SetServer points the session at another API and forgets any login. Setting
// the current URL again is a no-op.
func (m *SessionManager) SetServer(url string) error {
	url = trimURL(url)
	m.mu.Lock()
	if trimURL(m.cfg.ServerURL) == url && m.cfg.Token != "" {
		m.mu.Unlock()
		return nil
	}
	m.cfg.ServerURL = url
	m.cfg.Token = ""
	m.cfg.Username = ""
	cfg := m.cfg
	m.mu.Unlock()
	m.api.BaseURL = url
	return shared.SaveConsoleConfig(m.path, &cfg)
}

func (m *SessionManager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg.Token == "" {
		return Session{}, false
	}
	return Session{Token: m.cfg.Token, User: shared.UserInfo{Username: m.cfg.Username}}, true
}

func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Token
}

// Clear drops the stored session.
func (m *SessionManager) Clear() error {
	return m.store(Session{})
}

func (m *SessionManager) store(s Session) error {
	m.mu.Lock()
	m.cfg.Token = s.Token
	m.cfg.Username = s.User.Username
	cfg := m.cfg
	m.mu.Unlock()
	return shared.SaveConsoleConfig(m.path, &cfg)
}

// Login exchanges credentials for a token and persists it.
func (m *SessionManager) Login(ctx context.Context, username, password string) (Session, error) {
	var resp shared.LoginResponse
	err := m.api.do(ctx, http.MethodPost, "/auth/login", shared.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return Session{}, err
	}
	if resp.Token == "" {
		return Session{}, errors.New("login response carried no token")
	}
	s := Session{Token: resp.Token, User: resp.User}
	return s, m.store(s)
}

// Logout revokes the token server-side when possible and always clears the
// local session.
func (m *SessionManager) Logout(ctx context.Context) error {
	var remote error
	if m.Token() != "" {
		remote = m.api.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
		if errors.Is(remote, ErrLoginRequired) {
			remote = nil
		}
	}
	return errors.Join(remote, m.Clear())
}

// Verify checks the stored token with the server. An invalid token is cleared
// and reported as ErrLoginRequired.
func (m *SessionManager) Verify(ctx context.Context) (shared.UserInfo, error) {
	if err := m.api.RequireAuth(); err != nil {
		return shared.UserInfo{}, err
	}
	var resp shared.VerifyResponse
	if err := m.api.do(ctx, http.MethodPost, "/auth/verify", nil, &resp); err != nil {
		return shared.UserInfo{}, err
	}
	if !resp.Valid || resp.User == nil {
		_ = m.Clear()
		return shared.UserInfo{}, ErrLoginRequired
	}
	return *resp.User, nil
}
