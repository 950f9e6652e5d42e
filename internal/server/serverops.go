package server

import (
	"errors"
	"log/slog"
	"net/http"

	"ovpnadmin/internal/openvpn"
	"ovpnadmin/internal/shared"
)

func (a *API) ServerStatus(w http.ResponseWriter, r *http.Request) {
	res, err := a.Installer.Status(r.Context())
	if err != nil {
		a.scriptFailure(w, r, "Failed to get server status", err)
		return
	}
	if !res.Structured() {
		writeJSON(w, http.StatusOK, shared.RawOutputResponse{Output: res.Output})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (a *API) RenewServer(w http.ResponseWriter, r *http.Request) {
	var req shared.RenewRequest
	if err := readBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var verrs validationErrors
	days := verrs.certDays(req.CertDays)
	if verrs.write(w) {
		return
	}

	_, err := a.Installer.RenewServer(r.Context(), days)
	a.audit(r, "server_renew", "server", err, "")
	if err != nil {
		a.scriptFailure(w, r, "Failed to renew server certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, shared.MessageResponse{
		Success: true,
		Message: "Server certificate renewed successfully",
	})
}

// ServerInfo never fails: each probe substitutes its own default.
func (a *API) ServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Prober.Info(r.Context()))
}

// Connections lists live sessions from the management socket. Load stats are
// best effort.
func (a *API) Connections(w http.ResponseWriter, r *http.Request) {
	if a.Management == nil || !a.Management.Available() {
		writeJSON(w, http.StatusServiceUnavailable, shared.ErrorResponse{
			Error:   "Management interface not available",
			Details: "OpenVPN management socket not found. Service may not be running.",
		})
		return
	}
	clients, err := a.Management.Status(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, openvpn.ErrManagementUnavailable) {
			code = http.StatusServiceUnavailable
		}
		a.log().Error("management status", slog.String("error", err.Error()))
		writeJSON(w, code, shared.ErrorResponse{Error: "Failed to read connections", Details: err.Error()})
		return
	}
	if clients == nil {
		clients = []shared.OnlineClient{}
	}
	resp := shared.ConnectionsResponse{Clients: clients}
	if stats, err := a.Management.LoadStats(r.Context()); err == nil {
		resp.Stats = &stats
	} else {
		a.log().Debug("load-stats unavailable", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, resp)
}
