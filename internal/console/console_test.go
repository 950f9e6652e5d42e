package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ovpnadmin/internal/shared"
)

type fakeAPI struct {
	*httptest.Server
	hits     atomic.Int32
	lastAuth atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req shared.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "pw" {
			writeTestJSON(w, http.StatusUnauthorized, shared.ErrorResponse{Error: "Incorrect username or password"})
			return
		}
		writeTestJSON(w, http.StatusOK, shared.LoginResponse{Token: "tok-1", User: shared.UserInfo{Username: req.Username}})
	})
	mux.HandleFunc("POST /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeTestJSON(w, http.StatusUnauthorized, shared.VerifyResponse{Error: "Invalid or expired token"})
			return
		}
		writeTestJSON(w, http.StatusOK, shared.VerifyResponse{Valid: true, User: &shared.UserInfo{Username: "admin"}})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, shared.MessageResponse{Success: true})
	})
	mux.HandleFunc("GET /api/clients", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeTestJSON(w, http.StatusUnauthorized, shared.ErrorResponse{Error: "Invalid or expired token"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"clients": []map[string]any{{"name": "alice", "connected": true}}})
	})
	mux.HandleFunc("POST /api/clients", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		_ = dec.Decode(&req)
		if days, ok := req["certDays"].(json.Number); !ok || days.String() != "30" {
			writeTestJSON(w, http.StatusBadRequest, shared.ValidationErrorResponse{Errors: []shared.ValidationError{{Path: "certDays", Msg: "Certificate days must be positive"}}})
			return
		}
		writeTestJSON(w, http.StatusOK, shared.CreateClientResponse{Success: true, Client: shared.ClientRef{Name: req["name"].(string)}})
	})
	mux.HandleFunc("GET /api/clients/{name}/config", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "alice" {
			writeTestJSON(w, http.StatusNotFound, shared.ErrorResponse{Error: "Configuration file not found"})
			return
		}
		_, _ = w.Write([]byte("client\nremote vpn.example.com 1194\n"))
	})
	mux.HandleFunc("POST /api/clients/{name}/disconnect", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusServiceUnavailable, shared.ErrorResponse{Error: "Management interface not available", Details: "socket missing"})
	})
	mux.HandleFunc("GET /api/server/info", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusInternalServerError, shared.ErrorResponse{Error: "boom"})
	})
	mux.HandleFunc("GET /api/audit", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			writeTestJSON(w, http.StatusBadRequest, shared.ErrorResponse{Error: "bad limit"})
			return
		}
		writeTestJSON(w, http.StatusOK, shared.AuditListResponse{Entries: []shared.AuditEntry{{Action: "client_create"}}})
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, shared.HealthResponse{Status: "ok"})
	})

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func writeTestJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type recorder struct{ got []Notification }

func (r *recorder) notify(n Notification) { r.got = append(r.got, n) }

func openTestSession(t *testing.T, api *fakeAPI) (*SessionManager, *recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ovpnctl.json")
	rec := &recorder{}
	sm, err := OpenSession(path, rec.notify)
	require.NoError(t, err)
	require.NoError(t, sm.SetServer(api.URL+"/api"))
	return sm, rec, path
}

func TestGuardRefusesWithoutSession(t *testing.T) {
	api := newFakeAPI(t)
	sm, rec, _ := openTestSession(t, api)

	_, err := sm.Client().ListClients(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, err = sm.Verify(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, api.hits.Load())
	assert.Empty(t, rec.got)

	h, err := sm.Client().Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestLoginPersistsAndAttachesBearer(t *testing.T) {
	api := newFakeAPI(t)
	sm, _, path := openTestSession(t, api)
	ctx := context.Background()

	s, err := sm.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, "admin", s.User.Username)

	reopened, err := OpenSession(path, nil)
	require.NoError(t, err)
	cur, ok := reopened.Current()
	require.True(t, ok)
	assert.Equal(t, "tok-1", cur.Token)

	list, err := reopened.Client().ListClients(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", api.lastAuth.Load())
	require.Len(t, list.Clients, 1)
	assert.Equal(t, true, list.Clients[0]["connected"])

	u, err := reopened.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
}

func TestLoginFailure(t *testing.T) {
	api := newFakeAPI(t)
	sm, rec, _ := openTestSession(t, api)

	_, err := sm.Login(context.Background(), "admin", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Incorrect username or password", apiErr.Message)
	_, ok := sm.Current()
	assert.False(t, ok)
	require.Len(t, rec.got, 1)
	assert.Equal(t, http.StatusUnauthorized, rec.got[0].Status)
}

type staticTokens struct {
	token   string
	cleared bool
}

func (s *staticTokens) Token() string { return s.token }
func (s *staticTokens) Clear() error  { s.token = ""; s.cleared = true; return nil }

func TestUnauthorizedClearsSession(t *testing.T) {
	api := newFakeAPI(t)
	sm, rec, path := openTestSession(t, api)
	ctx := context.Background()
	_, err := sm.Login(ctx, "admin", "pw")
	require.NoError(t, err)

	// Simulate a token the server no longer accepts.
	cfg, err := shared.LoadConsoleConfig(path)
	require.NoError(t, err)
	cfg.Token = "stale"
	require.NoError(t, shared.SaveConsoleConfig(path, cfg))
	sm, err = OpenSession(path, rec.notify)
	require.NoError(t, err)

	_, err = sm.Client().ListClients(ctx)
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, ok := sm.Current()
	assert.False(t, ok)

	saved, err := shared.LoadConsoleConfig(path)
	require.NoError(t, err)
	assert.Empty(t, saved.Token)
	require.NotEmpty(t, rec.got)
	assert.Equal(t, "Unauthorized, please log in again", rec.got[len(rec.got)-1].Message)

	tokens := &staticTokens{token: "stale"}
	c := NewClient(api.URL+"/api", 0, tokens, nil)
	_, err = c.ListClients(ctx)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.True(t, tokens.cleared)
}

func TestStatusNotifications(t *testing.T) {
	api := newFakeAPI(t)
	rec := &recorder{}
	c := NewClient(api.URL+"/api/", 0, &staticTokens{token: "tok-1"}, rec.notify)
	ctx := context.Background()

	err := c.DownloadConfig(ctx, "bob", &bytes.Buffer{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = c.ServerInfo(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)

	_, err = c.DisconnectClient(ctx, "alice")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "socket missing", apiErr.Details)

	_, err = c.CreateClient(ctx, NewClientOptions{Name: "bob"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Certificate days must be positive", apiErr.Message)

	var msgs []string
	for _, n := range rec.got {
		msgs = append(msgs, n.Message)
	}
	assert.Equal(t, []string{
		"The requested resource does not exist",
		"Server error",
		"Management interface not available",
		"Request failed",
	}, msgs)
}

func TestNetworkErrorNotifies(t *testing.T) {
	api := newFakeAPI(t)
	url := api.URL
	api.Close()

	rec := &recorder{}
	c := NewClient(url+"/api", 0, &staticTokens{token: "tok-1"}, rec.notify)
	_, err := c.ListClients(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLoginRequired))
	require.Len(t, rec.got, 1)
	assert.Equal(t, "Network error, please check your connection", rec.got[0].Message)
}

func TestTypedCalls(t *testing.T) {
	api := newFakeAPI(t)
	c := NewClient(api.URL+"/api", 0, &staticTokens{token: "tok-1"}, nil)
	ctx := context.Background()

	created, err := c.CreateClient(ctx, NewClientOptions{Name: "bob", CertDays: 30})
	require.NoError(t, err)
	assert.Equal(t, "bob", created.Client.Name)

	var buf bytes.Buffer
	require.NoError(t, c.DownloadConfig(ctx, "alice", &buf))
	assert.Contains(t, buf.String(), "remote vpn.example.com")

	entries, err := c.Audit(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "client_create", entries[0].Action)
}

func TestLogoutAlwaysClears(t *testing.T) {
	api := newFakeAPI(t)
	sm, _, path := openTestSession(t, api)
	_, err := sm.Login(context.Background(), "admin", "pw")
	require.NoError(t, err)

	api.Close()
	err = sm.Logout(context.Background())
	assert.Error(t, err)

	_, ok := sm.Current()
	assert.False(t, ok)
	saved, err := shared.LoadConsoleConfig(path)
	require.NoError(t, err)
	assert.Empty(t, saved.Token)
}

func TestSetServerKeepsLoginForSameURL(t *testing.T) {
	api := newFakeAPI(t)
	sm, _, _ := openTestSession(t, api)
	_, err := sm.Login(context.Background(), "admin", "pw")
	require.NoError(t, err)

	require.NoError(t, sm.SetServer(api.URL+"/api/"))
	_, ok := sm.Current()
	assert.True(t, ok)

	require.NoError(t, sm.SetServer("http://elsewhere.invalid/api"))
	_, ok = sm.Current()
	assert.False(t, ok)
}
