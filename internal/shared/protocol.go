package shared

import "encoding/json"

type UserInfo struct {
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type VerifyResponse struct {
	Valid bool      `json:"valid"`
	User  *UserInfo `json:"user,omitempty"`
	Error string    `json:"error,omitempty"`
}

// CreateClientRequest is the body of POST /api/clients.
// CertDays accepts either a JSON number or a numeric string.
type CreateClientRequest struct {
	Name     string      `json:"name"`
	Password string      `json:"password,omitempty"`
	CertDays json.Number `json:"certDays,omitempty"`
}

type RenewRequest struct {
	CertDays json.Number `json:"certDays,omitempty"`
}

type ClientRef struct {
	Name       string  `json:"name"`
	ConfigPath *string `json:"configPath"`
}

type CreateClientResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Client  ClientRef `json:"client"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListClientsResponse carries the script's client objects, each extended with a
// boolean "connected" field.
type ListClientsResponse struct {
	Clients []map[string]any `json:"clients"`
}

// RawOutputResponse is returned when the script printed text where JSON was requested.
type RawOutputResponse struct {
	Output string `json:"output"`
}

type CleanupFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type DeleteClientResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Partial bool             `json:"partial,omitempty"`
	Removed []string         `json:"removed"`
	Missing []string         `json:"missing,omitempty"`
	Failed  []CleanupFailure `json:"failed,omitempty"`
}

type HostFacts struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelVersion   string `json:"kernelVersion"`
	UptimeSeconds   uint64 `json:"uptimeSeconds"`
}

type ServerInfo struct {
	Installed     bool       `json:"installed"`
	Version       string     `json:"version"`
	ServiceStatus string     `json:"serviceStatus"`
	IsRunning     bool       `json:"isRunning"`
	Host          *HostFacts `json:"host,omitempty"`
}

// OnlineClient is a CLIENT_LIST row from the management interface.
type OnlineClient struct {
	CommonName     string `json:"commonName"`
	RealAddress    string `json:"realAddress"`
	VirtualAddress string `json:"virtualAddress"`
	BytesReceived  int64  `json:"bytesReceived"`
	BytesSent      int64  `json:"bytesSent"`
	ConnectedSince string `json:"connectedSince"`
	ClientID       string `json:"clientId,omitempty"`
}

type LoadStats struct {
	Clients  int64 `json:"nclients"`
	BytesIn  int64 `json:"bytesIn"`
	BytesOut int64 `json:"bytesOut"`
}

type ConnectionsResponse struct {
	Clients []OnlineClient `json:"clients"`
	Stats   *LoadStats     `json:"stats,omitempty"`
}

type AuditEntry struct {
	ID        string `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Result    string `json:"result"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Output  string `json:"output,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// ValidationError mirrors a field-level validation failure.
type ValidationError struct {
	Location string `json:"location"`
	Path     string `json:"path"`
	Msg      string `json:"msg"`
	Value    any    `json:"value,omitempty"`
}

type ValidationErrorResponse struct {
	Errors []ValidationError `json:"errors"`
}
