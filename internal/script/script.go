// Package script runs the external OpenVPN management script and decodes its output.
//
// The wrapper is deliberately thin: it builds an argument list, runs the script,
// and tries to decode stdout as JSON when the caller asked for JSON. There is no
// retry, no queuing and no locking; overlapping calls run the script concurrently.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultPath is where the installer script lives in the stock container image.
const DefaultPath = "/app/openvpn-install.sh"

// maxOutputBytes bounds captured stdout.
const maxOutputBytes = 10 << 20

// waitDelay bounds how long Run waits for output pipes after the script is killed.
const waitDelay = 2 * time.Second

var ErrOutputTooLarge = errors.New("script output exceeds 10MiB")

// Result is the outcome of a single script invocation.
//
// Exactly one of Data or Output is set on success. Data holds the decoded JSON
// document when JSON was requested and stdout parsed; Output holds raw text otherwise.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Output  string          `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
	Stderr  string          `json:"stderr,omitempty"`
}

// Structured reports whether the result carries a decoded JSON document.
func (r Result) Structured() bool {
	return r.Success && len(r.Data) > 0
}

// Err converts a failed result into an error. It returns nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &Error{Message: r.Error, Output: r.Output, Stderr: r.Stderr}
}

// Error is a failed invocation carrying whatever the script printed before failing.
type Error struct {
	Message string
	Output  string
	Stderr  string
}

func (e *Error) Error() string { return e.Message }

// Runner invokes the management script with an ordered argument list.
type Runner interface {
	Run(ctx context.Context, args ...string) Result
}

// Executor runs the script as `<shell> <path> <args...>`.
type Executor struct {
	Path    string
	Shell   string
	Timeout time.Duration // zero means wait forever
	Logger  *slog.Logger
}

// NewExecutor returns an Executor for the script at path, run through bash.
func NewExecutor(path string, timeout time.Duration, logger *slog.Logger) *Executor {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Path: path, Shell: "bash", Timeout: timeout, Logger: logger}
}

// WantsJSON reports whether args contain a `--format json` pair.
func WantsJSON(args []string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--format" && args[i+1] == "json" {
			return true
		}
	}
	return false
}

// CommandLine renders the invocation as a single line for logs and error text.
// The value following --password is masked.
func (e *Executor) CommandLine(args []string) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, e.shell(), e.Path)
	mask := false
	for _, a := range args {
		if mask {
			parts = append(parts, "******")
			mask = false
			continue
		}
		parts = append(parts, a)
		mask = a == "--password"
	}
	return strings.Join(parts, " ")
}

// Run executes the script. It never returns an error; failures are reported in the Result.
//
// The child inherits the full parent environment plus NON_INTERACTIVE_INSTALL and
// OUTPUT_FORMAT. The invocation is detached from ctx cancellation so an aborted HTTP
// request cannot interrupt a PKI mutation half way; only Timeout bounds it.
func (e *Executor) Run(ctx context.Context, args ...string) Result {
	wantJSON := WantsJSON(args)
	line := e.CommandLine(args)
	log := e.logger().With(slog.String("command", line))
	log.Info("executing script")

	ctx = context.WithoutCancel(ctx)
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	format := "table"
	if wantJSON {
		format = "json"
	}

	cmd := exec.CommandContext(ctx, e.shell(), append([]string{e.Path}, args...)...)
	cmd.Env = append(os.Environ(),
		"NON_INTERACTIVE_INSTALL=y",
		"OUTPUT_FORMAT="+format,
	)
	stdout := &limitedBuffer{max: maxOutputBytes}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	if err == nil && stdout.overflow {
		err = ErrOutputTooLarge
	}
	observeInvocation(args, err == nil, time.Since(start))

	if err != nil {
		log.Error("script execution failed",
			slog.String("error", err.Error()),
			slog.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return Result{
			Success: false,
			Error:   failureMessage(line, err, stderr.String()),
			Output:  stdout.String(),
			Stderr:  stderr.String(),
		}
	}

	if wantJSON {
		out := bytes.TrimSpace(stdout.Bytes())
		if json.Valid(out) && len(out) > 0 {
			return Result{Success: true, Data: json.RawMessage(out)}
		}
		log.Warn("script output is not valid JSON, returning raw text")
	}
	return Result{Success: true, Output: stdout.String()}
}

func (e *Executor) shell() string {
	if e.Shell == "" {
		return "bash"
	}
	return e.Shell
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func failureMessage(line string, err error, stderr string) string {
	msg := fmt.Sprintf("command failed: %s: %v", line, err)
	if s := strings.TrimSpace(stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

// limitedBuffer keeps the first max bytes and silently drops the rest so the
// child never sees a broken pipe.
type limitedBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.overflow = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.overflow = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *limitedBuffer) String() string { return b.buf.String() }
