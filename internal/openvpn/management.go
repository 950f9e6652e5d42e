package openvpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"ovpnadmin/internal/shared"
)

const DefaultManagementSocket = "/var/run/openvpn-server/server.sock"

var (
	ErrManagementUnavailable = errors.New("management interface not available")
	ErrManagementCommand     = errors.New("management command failed")
)

// Management talks to the OpenVPN management interface over its unix socket.
// Each call opens a fresh connection, sends one command and reads the reply.
type Management struct {
	SocketPath string
	Timeout    time.Duration
}

func NewManagement(socketPath string) *Management {
	if socketPath == "" {
		socketPath = DefaultManagementSocket
	}
	return &Management{SocketPath: socketPath, Timeout: 5 * time.Second}
}

// Available reports whether the socket file exists.
func (m *Management) Available() bool {
	_, err := os.Stat(m.SocketPath)
	return err == nil
}

// Kill disconnects every session of the given common name and returns the
// interface's SUCCESS line.
func (m *Management) Kill(ctx context.Context, name string) (string, error) {
	if !shared.ValidClientName(name) {
		return "", shared.ErrInvalidClientName
	}
	lines, err := m.command(ctx, "kill "+name, false)
	if err != nil {
		return "", err
	}
	return lines[len(lines)-1], nil
}

// Status returns the connected sessions reported by `status 3`.
func (m *Management) Status(ctx context.Context) ([]shared.OnlineClient, error) {
	lines, err := m.command(ctx, "status 3", true)
	if err != nil {
		return nil, err
	}
	return ParseClientList(lines), nil
}

// LoadStats returns the `load-stats` summary.
func (m *Management) LoadStats(ctx context.Context) (shared.LoadStats, error) {
	lines, err := m.command(ctx, "load-stats", false)
	if err != nil {
		return shared.LoadStats{}, err
	}
	return ParseLoadStats(lines[len(lines)-1])
}

// command sends cmd and collects reply lines. Single-line commands end at the
// SUCCESS: line; multi-line commands end at END. Real-time notifications
// (lines starting with '>') are skipped. An ERROR: reply is returned as an error.
func (m *Management) command(ctx context.Context, cmd string, multiline bool) ([]string, error) {
	if !m.Available() {
		return nil, ErrManagementUnavailable
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var d net.Dialer
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "unix", m.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManagementUnavailable, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return nil, fmt.Errorf("send %q: %w", cmd, err)
	}

	var lines []string
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "" || strings.HasPrefix(line, ">"):
			continue
		case strings.HasPrefix(line, "ERROR:"):
			return nil, fmt.Errorf("%w: %s", ErrManagementCommand, strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
		case !multiline && strings.HasPrefix(line, "SUCCESS:"):
			return append(lines, line), nil
		case multiline && line == "END":
			return lines, nil
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %q reply: %w", cmd, err)
	}
	return nil, fmt.Errorf("read %q reply: connection closed", cmd)
}

// ParseClientList decodes CLIENT_LIST rows from `status 2/3` output or a status
// file. Tab and comma separators are both accepted.
func ParseClientList(lines []string) []shared.OnlineClient {
	var out []shared.OnlineClient
	for _, line := range lines {
		if !strings.HasPrefix(line, "CLIENT_LIST") {
			continue
		}
		parts := splitStatus(line)
		if len(parts) < 3 {
			continue
		}
		c := shared.OnlineClient{
			CommonName:  parts[1],
			RealAddress: parts[2],
		}
		if len(parts) > 3 {
			c.VirtualAddress = parts[3]
		}
		if len(parts) > 5 {
			c.BytesReceived, _ = strconv.ParseInt(parts[5], 10, 64)
		}
		if len(parts) > 6 {
			c.BytesSent, _ = strconv.ParseInt(parts[6], 10, 64)
		}
		if len(parts) > 7 {
			c.ConnectedSince = parts[7]
		}
		if len(parts) > 10 {
			c.ClientID = parts[10]
		}
		out = append(out, c)
	}
	return out
}

// ParseLoadStats decodes "SUCCESS: nclients=1,bytesin=100,bytesout=200".
func ParseLoadStats(line string) (shared.LoadStats, error) {
	payload, ok := strings.CutPrefix(line, "SUCCESS:")
	if !ok {
		return shared.LoadStats{}, fmt.Errorf("%w: unexpected load-stats reply %q", ErrManagementCommand, line)
	}
	var st shared.LoadStats
	for _, kv := range strings.Split(payload, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		switch k {
		case "nclients":
			st.Clients = n
		case "bytesin":
			st.BytesIn = n
		case "bytesout":
			st.BytesOut = n
		}
	}
	return st, nil
}

func splitStatus(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return strings.Split(line, ",")
}
