package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"ovpnadmin/internal/auth"
	"ovpnadmin/internal/shared"
)

type ctxKey int

const claimsKey ctxKey = iota

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (shared.UserInfo, bool) {
	c, ok := claimsFromContext(ctx)
	if !ok {
		return shared.UserInfo{}, false
	}
	return shared.UserInfo{Username: c.Username}, true
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("Bearer "):])
}

// RequireAuth rejects requests without a valid bearer token before any route
// logic runs.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			metricAuthFailures.WithLabelValues("missing").Inc()
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		claims, err := a.Tokens.Validate(token)
		if err != nil {
			metricAuthFailures.WithLabelValues(authFailureReason(err)).Inc()
			a.log().Debug("token rejected",
				slog.String("request_id", requestID(r)),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrRevokedToken):
		return "revoked"
	default:
		return "invalid"
	}
}

func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if allow := a.allowedOrigin(origin); allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) allowedOrigin(origin string) string {
	for _, o := range a.CORSOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// requestLogger logs one line per request and feeds the HTTP metrics.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := routePattern(r)
		observeRequest(r.Method, route, status, elapsed)

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		a.log().Log(r.Context(), level, "request",
			slog.String("request_id", requestID(r)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", elapsed),
		)
	})
}

// recoverer turns a handler panic into a JSON 500. The stack is only echoed
// outside production.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			stack := string(debug.Stack())
			a.log().Error("panic",
				slog.String("request_id", requestID(r)),
				slog.String("error", fmt.Sprint(rec)),
				slog.String("stack", stack),
			)
			resp := shared.ErrorResponse{Error: "Internal server error"}
			if !a.Production {
				resp.Details = fmt.Sprint(rec)
				resp.Stack = stack
			}
			writeJSON(w, http.StatusInternalServerError, resp)
		}()
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
