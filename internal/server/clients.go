package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"ovpnadmin/internal/openvpn"
	"ovpnadmin/internal/shared"
)

// ListClients answers the script's client list with a "connected" flag merged
// in from the server status.
func (a *API) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := a.Installer.ListClients(ctx)
	if err != nil {
		a.scriptFailure(w, r, "Failed to list clients", err)
		return
	}
	status, err := a.Installer.Status(ctx)
	if err != nil {
		a.scriptFailure(w, r, "Failed to list clients", err)
		return
	}

	if !list.Structured() {
		writeJSON(w, http.StatusOK, shared.RawOutputResponse{Output: list.Output})
		return
	}
	clients, err := openvpn.ClientObjects(list.Data)
	if err != nil {
		a.log().Warn("unexpected client list shape", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, shared.RawOutputResponse{Output: string(list.Data)})
		return
	}

	connected := map[string]struct{}{}
	if status.Structured() {
		if names, err := openvpn.ConnectedNames(status.Data); err != nil {
			a.log().Warn("unexpected server status shape", slog.String("error", err.Error()))
		} else if names != nil {
			connected = names
		}
	} else {
		a.log().Warn("server status was not JSON; reporting all clients disconnected")
	}
	openvpn.MarkConnected(clients, connected)
	writeJSON(w, http.StatusOK, shared.ListClientsResponse{Clients: clients})
}

func (a *API) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req shared.CreateClientRequest
	if err := readBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	var verrs validationErrors
	verrs.checkBodyName(req.Name)
	days := verrs.certDays(req.CertDays)
	if verrs.write(w) {
		return
	}

	_, err := a.Installer.AddClient(r.Context(), openvpn.AddClientOptions{
		Name:     req.Name,
		Password: req.Password,
		CertDays: days,
	})
	a.audit(r, "client_create", req.Name, err, "")
	if err != nil {
		a.scriptFailure(w, r, "Failed to add client", err)
		return
	}

	ref := shared.ClientRef{Name: req.Name}
	if path, ok := a.PKI.FindConfig(req.Name); ok {
		ref.ConfigPath = &path
	}
	writeJSON(w, http.StatusOK, shared.CreateClientResponse{
		Success: true,
		Message: fmt.Sprintf("Client %s created successfully", req.Name),
		Client:  ref,
	})
}

func (a *API) RevokeClient(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	_, err := a.Installer.RevokeClient(r.Context(), name)
	a.audit(r, "client_revoke", name, err, "")
	if err != nil {
		a.scriptFailure(w, r, "Failed to revoke client", err)
		return
	}
	writeJSON(w, http.StatusOK, shared.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Client %s revoked successfully", name),
	})
}

func (a *API) RenewClient(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
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

	_, err := a.Installer.RenewClient(r.Context(), name, days)
	a.audit(r, "client_renew", name, err, "")
	if err != nil {
		a.scriptFailure(w, r, "Failed to renew client", err)
		return
	}
	writeJSON(w, http.StatusOK, shared.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Client %s renewed successfully", name),
	})
}

// DownloadConfig streams <name>.ovpn as an attachment.
func (a *API) DownloadConfig(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	path, ok := a.PKI.FindConfig(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Configuration file not found")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		a.log().Error("open client config", slog.String("path", path), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to download configuration")
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to download configuration")
		return
	}

	w.Header().Set("Content-Type", "application/x-openvpn-profile")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ovpn"`, name))
	http.ServeContent(w, r, name+".ovpn", st.ModTime(), f)
}

// DisconnectClient kills the client's live sessions through the management socket.
func (a *API) DisconnectClient(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	if a.Management == nil || !a.Management.Available() {
		writeJSON(w, http.StatusServiceUnavailable, shared.ErrorResponse{
			Error:   "Management interface not available",
			Details: "OpenVPN management socket not found. Service may not be running.",
		})
		return
	}

	reply, err := a.Management.Kill(r.Context(), name)
	a.audit(r, "client_disconnect", name, err, reply)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, openvpn.ErrManagementUnavailable) {
			code = http.StatusServiceUnavailable
		}
		a.log().Error("disconnect client", slog.String("client", name), slog.String("error", err.Error()))
		writeJSON(w, code, shared.ErrorResponse{Error: "Failed to disconnect client", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, shared.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Client %s has been disconnected", name),
	})
}

// DeleteClient removes a revoked client's certificate artifacts. Cleanup is best
// effort once the certificate is known to exist; failed steps are reported, not fatal.
func (a *API) DeleteClient(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	rep, err := a.PKI.DeleteClientFiles(name)
	if errors.Is(err, openvpn.ErrCertificateNotFound) {
		writeError(w, http.StatusNotFound, "Client certificate not found")
		return
	}
	if err != nil {
		a.log().Error("delete client", slog.String("client", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to delete client")
		return
	}

	resp := shared.DeleteClientResponse{
		Success: true,
		Message: fmt.Sprintf("Client %s deleted permanently", name),
		Partial: rep.Partial(),
		Removed: rep.Removed,
		Missing: rep.Missing,
	}
	for _, f := range rep.Failed {
		a.log().Warn("cleanup step failed", slog.String("client", name), slog.String("path", f.Path), slog.String("error", f.Err.Error()))
		resp.Failed = append(resp.Failed, shared.CleanupFailure{Path: f.Path, Error: f.Err.Error()})
	}
	if resp.Removed == nil {
		resp.Removed = []string{}
	}
	a.audit(r, "client_delete", name, rep.Err(), "")
	writeJSON(w, http.StatusOK, resp)
}
