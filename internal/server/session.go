package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ovpnadmin/internal/auth"
	"ovpnadmin/internal/shared"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Login accepts JSON or form-encoded credentials.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req shared.LoginRequest
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad form")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if err := readBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	var verrs validationErrors
	if req.Username == "" {
		verrs.add("username", "Username is required", nil)
	}
	if req.Password == "" {
		verrs.add("password", "Password is required", nil)
	}
	if verrs.write(w) {
		return
	}

	err := a.checkCredentials(r.Context(), req.Username, req.Password)
	if err != nil && !errors.Is(err, auth.ErrBadCredentials) {
		a.log().Error("login lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	a.auditAs(r, req.Username, "user_login", err)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := a.Tokens.Issue(req.Username)
	if err != nil {
		a.log().Error("issue token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, shared.LoginResponse{
		Token: token,
		User:  shared.UserInfo{Username: req.Username},
	})
}

func (a *API) checkCredentials(ctx context.Context, username, password string) error {
	u, err := a.Store.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return auth.RejectUnknownUser(password)
	}
	if err != nil {
		return err
	}
	return auth.CheckPassword(u.PasswordHash, password)
}

// Verify reports whether the presented token is still good.
func (a *API) Verify(w http.ResponseWriter, r *http.Request) {
	claims, err := a.Tokens.Validate(bearerToken(r))
	if err != nil {
		msg := "Invalid or expired token"
		if errors.Is(err, auth.ErrNoToken) {
			msg = "Access token required"
		}
		writeJSON(w, http.StatusUnauthorized, shared.VerifyResponse{Valid: false, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, shared.VerifyResponse{
		Valid: true,
		User:  &shared.UserInfo{Username: claims.Username},
	})
}

// Logout revokes the presented token. It runs behind RequireAuth.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if ok {
		a.Tokens.Revoke(claims)
		a.audit(r, "user_logout", claims.Username, nil, "")
	}
	writeJSON(w, http.StatusOK, shared.MessageResponse{Success: true, Message: "Logged out"})
}

func (a *API) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			writeJSON(w, http.StatusBadRequest, shared.ValidationErrorResponse{Errors: []shared.ValidationError{{
				Location: "query", Path: "limit", Msg: "limit must be between 1 and 500", Value: raw,
			}}})
			return
		}
		limit = n
	}
	entries, err := a.Store.ListAudit(r.Context(), limit)
	if err != nil {
		a.log().Error("list audit", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to read audit log")
		return
	}
	if entries == nil {
		entries = []shared.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, shared.AuditListResponse{Entries: entries})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, shared.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Ready checks the database.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, shared.ErrorResponse{Error: "not ready", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, shared.HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// PruneRevokedTokens forgets expired revocations until ctx is done.
func (a *API) PruneRevokedTokens(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := a.Tokens.PruneRevoked(now); n > 0 {
				a.log().Debug("pruned revoked tokens", slog.Int("count", n))
			}
		}
	}
}
