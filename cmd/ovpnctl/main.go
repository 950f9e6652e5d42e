package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"ovpnadmin/internal/console"
	"ovpnadmin/internal/shared"
)

const usage = `usage: ovpnctl [-session FILE] [-server URL] <command> [args]

commands:
  login [-u USER] [-p PASSWORD]
  logout
  whoami
  clients list
  clients add NAME [-password PW] [-days N]
  clients revoke NAME
  clients renew NAME [-days N]
  clients config NAME [-o FILE]
  clients disconnect NAME
  clients delete NAME
  server status|info|connections
  server renew [-days N]
  audit [-n LIMIT]
  health
`

func main() {
	sessionPath := flag.String("session", defaultSessionPath(), "session file")
	serverURL := flag.String("server", "", "API base URL, e.g. http://vpn:3000/api (a different URL resets the session)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	sm, err := console.OpenSession(*sessionPath, func(n console.Notification) {
		fmt.Fprintln(os.Stderr, "!", n.Message)
	})
	if err != nil {
		fatal(err)
	}
	if *serverURL != "" {
		if err := sm.SetServer(*serverURL); err != nil {
			fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := dispatch(ctx, sm, flag.Args()); err != nil {
		if errors.Is(err, console.ErrLoginRequired) {
			fmt.Fprintln(os.Stderr, "not logged in: run `ovpnctl login`")
			os.Exit(2)
		}
		fatal(err)
	}
}

func dispatch(ctx context.Context, sm *console.SessionManager, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	c := sm.Client()
	switch args[0] {
	case "login":
		return login(ctx, sm, args[1:])
	case "logout":
		return sm.Logout(ctx)
	case "whoami":
		u, err := sm.Verify(ctx)
		if err != nil {
			return err
		}
		fmt.Println(u.Username)
		return nil
	case "clients":
		return clients(ctx, c, args[1:])
	case "server":
		return serverCmd(ctx, c, args[1:])
	case "audit":
		fs := flag.NewFlagSet("audit", flag.ExitOnError)
		n := fs.Int("n", 50, "entries")
		_ = fs.Parse(args[1:])
		entries, err := c.Audit(ctx, *n)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tTARGET\tRESULT")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				time.Unix(e.CreatedAt, 0).Format(time.DateTime), e.Actor, e.Action, e.Target, e.Result)
		}
		return tw.Flush()
	case "health":
		h, err := c.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Println(h.Status, h.Timestamp)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func login(ctx context.Context, sm *console.SessionManager, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("u", "admin", "username")
	pass := fs.String("p", os.Getenv("OVPNCTL_PASSWORD"), "password (prompted when empty)")
	_ = fs.Parse(args)

	if *pass == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		*pass = strings.TrimRight(line, "\r\n")
	}
	s, err := sm.Login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Println("logged in as", s.User.Username)
	return nil
}

func clients(ctx context.Context, c *console.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("clients: missing subcommand")
	}
	sub, rest := args[0], args[1:]
	if sub == "list" {
		list, err := c.ListClients(ctx)
		if err != nil {
			return err
		}
		if list.Output != "" {
			fmt.Print(list.Output)
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCONNECTED")
		for _, cl := range list.Clients {
			fmt.Fprintf(tw, "%v\t%v\n", cl["name"], cl["connected"])
		}
		return tw.Flush()
	}

	if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
		return fmt.Errorf("clients %s: missing client name", sub)
	}
	name, rest := rest[0], rest[1:]
	fs := flag.NewFlagSet("clients "+sub, flag.ExitOnError)
	days := fs.Int("days", 0, "certificate validity in days")
	password := fs.String("password", "", "client key passphrase")
	out := fs.String("o", "", "output file (default NAME.ovpn)")
	_ = fs.Parse(rest)

	switch sub {
	case "add":
		resp, err := c.CreateClient(ctx, console.NewClientOptions{Name: name, Password: *password, CertDays: *days})
		if err != nil {
			return err
		}
		fmt.Println(resp.Message)
		if resp.Client.ConfigPath != nil {
			fmt.Println("profile:", *resp.Client.ConfigPath)
		}
		return nil
	case "revoke":
		return printMessage(c.RevokeClient(ctx, name))
	case "renew":
		return printMessage(c.RenewClient(ctx, name, *days))
	case "disconnect":
		return printMessage(c.DisconnectClient(ctx, name))
	case "delete":
		resp, err := c.DeleteClient(ctx, name)
		if err != nil {
			return err
		}
		fmt.Println(resp.Message)
		for _, f := range resp.Failed {
			fmt.Fprintf(os.Stderr, "could not remove %s: %s\n", f.Path, f.Error)
		}
		return nil
	case "config":
		path := *out
		if path == "" {
			path = name + ".ovpn"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		if err := c.DownloadConfig(ctx, name, f); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
		fmt.Println("wrote", path)
		return f.Close()
	default:
		return fmt.Errorf("clients: unknown subcommand %q", sub)
	}
}

func serverCmd(ctx context.Context, c *console.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("server: missing subcommand")
	}
	switch args[0] {
	case "status":
		raw, err := c.ServerStatus(ctx)
		if err != nil {
			return err
		}
		return printJSON(raw)
	case "info":
		info, err := c.ServerInfo(ctx)
		if err != nil {
			return err
		}
		return printJSON(info)
	case "connections":
		conns, err := c.Connections(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tREAL ADDRESS\tVIRTUAL\tRX\tTX\tSINCE")
		for _, s := range conns.Clients {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				s.CommonName, s.RealAddress, s.VirtualAddress, s.BytesReceived, s.BytesSent, s.ConnectedSince)
		}
		return tw.Flush()
	case "renew":
		fs := flag.NewFlagSet("server renew", flag.ExitOnError)
		days := fs.Int("days", 0, "certificate validity in days")
		_ = fs.Parse(args[1:])
		return printMessage(c.RenewServer(ctx, *days))
	default:
		return fmt.Errorf("server: unknown subcommand %q", args[0])
	}
}

func printMessage(resp shared.MessageResponse, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultSessionPath() string {
	if p := os.Getenv("OVPNCTL_SESSION"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ovpnctl.json"
	}
	return filepath.Join(dir, "ovpnctl", "session.json")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ovpnctl:", err)
	os.Exit(1)
}
