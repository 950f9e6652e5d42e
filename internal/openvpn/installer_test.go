package openvpn

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ovpnadmin/internal/script"
)

type recordingRunner struct {
	calls  [][]string
	result script.Result
}

func (r *recordingRunner) Run(_ context.Context, args ...string) script.Result {
	r.calls = append(r.calls, append([]string(nil), args...))
	return r.result
}

func TestScriptInstallerArguments(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(*ScriptInstaller) error
		want []string
	}{
		{"list", func(s *ScriptInstaller) error { _, err := s.ListClients(ctx); return err },
			[]string{"client", "list", "--format", "json"}},
		{"add bare", func(s *ScriptInstaller) error {
			_, err := s.AddClient(ctx, AddClientOptions{Name: "alice"})
			return err
		}, []string{"client", "add", "alice"}},
		{"add full", func(s *ScriptInstaller) error {
			_, err := s.AddClient(ctx, AddClientOptions{Name: "alice", Password: "pw", CertDays: 30})
			return err
		}, []string{"client", "add", "alice", "--password", "pw", "--cert-days", "30"}},
		{"revoke", func(s *ScriptInstaller) error { _, err := s.RevokeClient(ctx, "bob"); return err },
			[]string{"client", "revoke", "bob"}},
		{"renew default", func(s *ScriptInstaller) error { _, err := s.RenewClient(ctx, "bob", 0); return err },
			[]string{"client", "renew", "bob"}},
		{"renew days", func(s *ScriptInstaller) error { _, err := s.RenewClient(ctx, "bob", 365); return err },
			[]string{"client", "renew", "bob", "--cert-days", "365"}},
		{"status", func(s *ScriptInstaller) error { _, err := s.Status(ctx); return err },
			[]string{"server", "status", "--format", "json"}},
		{"server renew", func(s *ScriptInstaller) error { _, err := s.RenewServer(ctx, 3650); return err },
			[]string{"server", "renew", "--cert-days", "3650"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRunner{result: script.Result{Success: true}}
			require.NoError(t, tt.call(NewScriptInstaller(r)))
			require.Len(t, r.calls, 1)
			assert.Equal(t, tt.want, r.calls[0])
		})
	}
}

func TestScriptInstallerFailure(t *testing.T) {
	r := &recordingRunner{result: script.Result{Success: false, Error: "boom", Stderr: "trace"}}
	res, err := NewScriptInstaller(r).RevokeClient(context.Background(), "bob")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, res.Success)

	var se *script.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "trace", se.Stderr)
}

func TestClientObjects(t *testing.T) {
	got, err := ClientObjects(json.RawMessage(`{"clients":[{"name":"a","status":"valid"},{"name":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "valid", got[0]["status"])

	got, err = ClientObjects(json.RawMessage(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "a"}, {"name": "b"}}, got)

	_, err = ClientObjects(json.RawMessage(`{"data":[{"name":"a"}]}`))
	assert.ErrorIs(t, err, ErrNoClientArray)

	_, err = ClientObjects(json.RawMessage(`42`))
	assert.Error(t, err)
}

func TestConnectedNamesAndMerge(t *testing.T) {
	connected, err := ConnectedNames(json.RawMessage(`{"status":"running","clients":[{"common_name":"B","real_address":"1.2.3.4:5555"}]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"B": {}}, connected)

	clients := []map[string]any{{"name": "A"}, {"name": "B"}, {"name": "C"}}
	MarkConnected(clients, connected)
	assert.Equal(t, false, clients[0]["connected"])
	assert.Equal(t, true, clients[1]["connected"])
	assert.Equal(t, false, clients[2]["connected"])
}

func TestConnectedNamesWithoutClientKey(t *testing.T) {
	connected, err := ConnectedNames(json.RawMessage(`{"status":"stopped"}`))
	require.NoError(t, err)
	assert.Empty(t, connected)
}

func TestConnectedNamesAlternateKeys(t *testing.T) {
	connected, err := ConnectedNames(json.RawMessage(`{"connected_clients":[{"cn":"x"},"y"]}`))
	require.NoError(t, err)
	assert.Len(t, connected, 2)
	assert.Contains(t, connected, "x")
	assert.Contains(t, connected, "y")
}
