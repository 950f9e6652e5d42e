package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"ovpnadmin/internal/shared"
)

// ClientList is the answer of GET /clients. Output is set instead of Clients
// when the server's script printed text.
type ClientList struct {
	Clients []map[string]any `json:"clients"`
	Output  string           `json:"output"`
}

func clientPath(name, suffix string) string {
	return "/clients/" + url.PathEscape(name) + suffix
}

func daysBody(days int) any {
	if days <= 0 {
		return nil
	}
	return shared.RenewRequest{CertDays: json.Number(strconv.Itoa(days))}
}

func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	if err := c.RequireAuth(); err != nil {
		return err
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) Health(ctx context.Context) (shared.HealthResponse, error) {
	var out shared.HealthResponse
	return out, c.do(ctx, http.MethodGet, "/health", nil, &out)
}

func (c *Client) ListClients(ctx context.Context) (ClientList, error) {
	var out ClientList
	return out, c.authed(ctx, http.MethodGet, "/clients", nil, &out)
}

type NewClientOptions struct {
	Name     string
	Password string
	CertDays int
}

func (c *Client) CreateClient(ctx context.Context, opts NewClientOptions) (shared.CreateClientResponse, error) {
	req := shared.CreateClientRequest{Name: opts.Name, Password: opts.Password}
	if opts.CertDays > 0 {
		req.CertDays = json.Number(strconv.Itoa(opts.CertDays))
	}
	var out shared.CreateClientResponse
	return out, c.authed(ctx, http.MethodPost, "/clients", req, &out)
}

func (c *Client) RevokeClient(ctx context.Context, name string) (shared.MessageResponse, error) {
	var out shared.MessageResponse
	return out, c.authed(ctx, http.MethodDelete, clientPath(name, ""), nil, &out)
}

func (c *Client) RenewClient(ctx context.Context, name string, certDays int) (shared.MessageResponse, error) {
	var out shared.MessageResponse
	return out, c.authed(ctx, http.MethodPost, clientPath(name, "/renew"), daysBody(certDays), &out)
}

// DownloadConfig writes the client's .ovpn profile to w.
func (c *Client) DownloadConfig(ctx context.Context, name string, w io.Writer) error {
	return c.authed(ctx, http.MethodGet, clientPath(name, "/config"), nil, w)
}

func (c *Client) DisconnectClient(ctx context.Context, name string) (shared.MessageResponse, error) {
	var out shared.MessageResponse
	return out, c.authed(ctx, http.MethodPost, clientPath(name, "/disconnect"), nil, &out)
}

func (c *Client) DeleteClient(ctx context.Context, name string) (shared.DeleteClientResponse, error) {
	var out shared.DeleteClientResponse
	return out, c.authed(ctx, http.MethodPost, clientPath(name, "/delete"), nil, &out)
}

// ServerStatus returns the script's status document as-is.
func (c *Client) ServerStatus(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.authed(ctx, http.MethodGet, "/server/status", nil, &out)
}

func (c *Client) RenewServer(ctx context.Context, certDays int) (shared.MessageResponse, error) {
	var out shared.MessageResponse
	return out, c.authed(ctx, http.MethodPost, "/server/renew", daysBody(certDays), &out)
}

func (c *Client) ServerInfo(ctx context.Context) (shared.ServerInfo, error) {
	var out shared.ServerInfo
	return out, c.authed(ctx, http.MethodGet, "/server/info", nil, &out)
}

func (c *Client) Connections(ctx context.Context) (shared.ConnectionsResponse, error) {
	var out shared.ConnectionsResponse
	return out, c.authed(ctx, http.MethodGet, "/server/connections", nil, &out)
}

func (c *Client) Audit(ctx context.Context, limit int) ([]shared.AuditEntry, error) {
	path := "/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out shared.AuditListResponse
	if err := c.authed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
