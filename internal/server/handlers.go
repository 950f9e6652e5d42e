package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ovpnadmin/internal/auth"
	"ovpnadmin/internal/openvpn"
	"ovpnadmin/internal/script"
	"ovpnadmin/internal/shared"
)

const maxBodyBytes = 1 << 20

// SessionControl is the subset of the management interface the handlers use.
type SessionControl interface {
	Available() bool
	Kill(ctx context.Context, name string) (string, error)
	Status(ctx context.Context) ([]shared.OnlineClient, error)
	LoadStats(ctx context.Context) (shared.LoadStats, error)
}

type InfoProber interface {
	Info(ctx context.Context) shared.ServerInfo
}

// API holds the collaborators every handler delegates to.
type API struct {
	Installer  openvpn.Installer
	PKI        *openvpn.PKI
	Management SessionControl
	Prober     InfoProber
	Store      Store
	Tokens     *auth.TokenManager
	Logger     *slog.Logger

	Production    bool
	CORSOrigins   []string
	PublicMetrics bool
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, shared.ErrorResponse{Error: msg})
}

// readBody decodes an optional JSON body into dst. An empty body leaves dst untouched.
func readBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	return nil
}

func (a *API) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// scriptFailure answers 500 for a failed script call. Script output is only
// echoed outside production.
func (a *API) scriptFailure(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	resp := shared.ErrorResponse{Error: fallback}
	var se *script.Error
	if errors.As(err, &se) {
		if se.Message != "" {
			resp.Error = se.Message
		}
		if !a.Production {
			resp.Output = se.Output
			resp.Stderr = se.Stderr
		}
	}
	a.log().Error(fallback,
		slog.String("request_id", requestID(r)),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, resp)
}

// audit records an operator action by the authenticated user.
func (a *API) audit(r *http.Request, action, target string, opErr error, detail string) {
	actor := "anonymous"
	if u, ok := UserFromContext(r.Context()); ok {
		actor = u.Username
	}
	a.writeAudit(r, actor, action, target, opErr, detail)
}

// auditAs records an action whose actor is not yet authenticated, such as a login.
func (a *API) auditAs(r *http.Request, actor, action string, opErr error) {
	a.writeAudit(r, actor, action, actor, opErr, "")
}

// writeAudit never fails the request; store errors are only logged.
func (a *API) writeAudit(r *http.Request, actor, action, target string, opErr error, detail string) {
	if a.Store == nil {
		return
	}
	result := AuditSuccess
	if opErr != nil {
		result = AuditFail
		if detail == "" {
			detail = opErr.Error()
		}
	}
	_, err := a.Store.AddAudit(context.WithoutCancel(r.Context()), shared.AuditEntry{
		Actor:  actor,
		Action: action,
		Target: target,
		Result: result,
		Detail: detail,
	})
	if err != nil {
		a.log().Warn("audit write failed",
			slog.String("action", action),
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
	}
}
