// Package console is the operator-side client of the ovpnadmin API: one
// configured HTTP client, a persisted login session, and typed calls for every
// route.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// ErrLoginRequired means there is no usable session: none was stored, or the
// server answered 401 and the stored one was discarded.
var ErrLoginRequired = errors.New("login required")

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

type Notification struct {
	Level   Level
	Status  int
	Message string
}

// Notifier receives user-facing messages for failed requests.
type Notifier func(Notification)

// TokenSource supplies the bearer token and drops it when the server rejects it.
type TokenSource interface {
	Token() string
	Clear() error
}

// APIError is a non-2xx answer. A 401 matches ErrLoginRequired.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrLoginRequired && e.Status == http.StatusUnauthorized
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenSource
	Notify  Notifier
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, notify Notifier) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: trimURL(baseURL),
		HTTP:    &http.Client{Timeout: timeout},
		Tokens:  tokens,
		Notify:  notify,
	}
}

func trimURL(u string) string { return strings.TrimRight(strings.TrimSpace(u), "/") }

// RequireAuth refuses protected calls when no token is stored.
func (c *Client) RequireAuth() error {
	if c.token() == "" {
		return ErrLoginRequired
	}
	return nil
}

func (c *Client) token() string {
	if c.Tokens == nil {
		return ""
	}
	return c.Tokens.Token()
}

func (c *Client) notify(n Notification) {
	if c.Notify != nil {
		c.Notify(n)
	}
}

// do sends a JSON request. out may be nil, an io.Writer for raw bodies, or a
// pointer to decode into.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.notify(Notification{Level: LevelError, Message: "Request configuration error"})
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		c.notify(Notification{Level: LevelError, Message: "Request configuration error"})
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.notify(Notification{Level: LevelError, Message: "Network error, please check your connection"})
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.failure(resp)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case io.Writer:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}
}

func (c *Client) failure(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
		Errors  []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(b, &body)

	apiErr := &APIError{Status: resp.StatusCode, Message: body.Error, Details: body.Details}
	if apiErr.Message == "" && len(body.Errors) > 0 {
		msgs := make([]string, 0, len(body.Errors))
		for _, e := range body.Errors {
			msgs = append(msgs, e.Msg)
		}
		apiErr.Message = strings.Join(msgs, "; ")
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	var msg string
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		msg = "Unauthorized, please log in again"
		if c.Tokens != nil {
			_ = c.Tokens.Clear()
		}
	case http.StatusForbidden:
		msg = "Access denied"
	case http.StatusNotFound:
		msg = "The requested resource does not exist"
	case http.StatusInternalServerError:
		msg = "Server error"
	default:
		msg = body.Error
		if msg == "" {
			msg = "Request failed"
		}
	}
	c.notify(Notification{Level: LevelError, Status: resp.StatusCode, Message: msg})
	return apiErr
}
