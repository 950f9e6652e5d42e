package openvpn

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoClientArray reports a JSON object that carries none of the known client keys.
var ErrNoClientArray = errors.New("no client array in script output")

// Keys under which the script may report a client's common name.
var nameKeys = []string{"name", "common_name", "commonName", "cn"}

// ClientObjects extracts client objects from `client list --format json` output.
// Both a bare array and an object with a "clients" array are accepted; bare
// strings are promoted to {"name": s}.
func ClientObjects(data json.RawMessage) ([]map[string]any, error) {
	items, err := clientArray(data, "clients")
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case map[string]any:
			out = append(out, v)
		case string:
			out = append(out, map[string]any{"name": v})
		}
	}
	return out, nil
}

// ConnectedNames extracts the set of connected client names from
// `server status --format json` output.
func ConnectedNames(data json.RawMessage) (map[string]struct{}, error) {
	items, err := clientArray(data, "clients", "connected_clients", "connectedClients")
	if errors.Is(err, ErrNoClientArray) {
		// A stopped server reports no client list at all.
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case map[string]any:
			if n := ClientName(v); n != "" {
				set[n] = struct{}{}
			}
		case string:
			set[v] = struct{}{}
		}
	}
	return set, nil
}

// MarkConnected sets "connected" on every client by membership in connected.
func MarkConnected(clients []map[string]any, connected map[string]struct{}) {
	for _, c := range clients {
		_, ok := connected[ClientName(c)]
		c["connected"] = ok
	}
}

// ClientName returns the first non-empty name field of a client object.
func ClientName(obj map[string]any) string {
	for _, k := range nameKeys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func clientArray(data json.RawMessage, keys ...string) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode script output: %w", err)
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr, nil
			}
		}
		return nil, ErrNoClientArray
	default:
		return nil, fmt.Errorf("unexpected script output type %T", doc)
	}
}
