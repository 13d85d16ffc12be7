// Package ytdlp drives the yt-dlp command line as the media engine.
package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/logctx"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1024 * 1024

// Client runs yt-dlp as a child process per invocation.
type Client struct {
	binary    string
	extraArgs []string
}

// Option configures a Client.
type Option func(*Client)

// WithExtraArgs appends raw yt-dlp arguments to every invocation, before the URL.
func WithExtraArgs(args ...string) Option {
	return func(c *Client) { c.extraArgs = append(c.extraArgs, args...) }
}

// NewClient creates a client for the yt-dlp binary at path (looked up in PATH when bare).
func NewClient(binary string, opts ...Option) *Client {
	c := &Client{binary: binary}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Version runs "yt-dlp --version". Used at startup to fail fast when the binary is missing.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to run %s --version: %w", c.binary, err)
	}

	return strings.TrimSpace(string(out)), nil
}

// Fetch runs one yt-dlp invocation and blocks until the process exits. Listener
// callbacks are issued from the calling goroutine while stdout is consumed.
func (c *Client) Fetch(ctx context.Context, inv engine.Invocation, l engine.Listener) error {
	logger := logctx.LoggerFromContext(ctx)

	cmd := exec.CommandContext(ctx, c.binary, BuildArgs(inv, c.extraArgs...)...)
	logger.DebugContext(ctx, "built yt-dlp command", "command", cmd.String())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &engine.Failure{Reason: "failed to start yt-dlp", ExitCode: -1, Err: err}
	}

	var (
		g      errgroup.Group
		diag   diagnostics
		readFn = func(r io.Reader, handle func(string)) error {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

			for scanner.Scan() {
				handle(scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				// keep the pipe empty so yt-dlp can exit
				_, _ = io.Copy(io.Discard, r)

				return err
			}

			return nil
		}
	)

	g.Go(func() error {
		return readFn(stderr, func(line string) {
			diag.add(line)
			logger.DebugContext(ctx, "yt-dlp", "stderr", line)
		})
	})

	stdoutErr := readFn(stdout, func(line string) {
		handled, err := dispatchLine(line, l)
		if err != nil {
			logger.WarnContext(ctx, "failed to parse yt-dlp output", "line", line, "err", err)

			return
		}

		if !handled {
			logger.DebugContext(ctx, "yt-dlp", "stdout", line)
		}
	})
	stderrErr := g.Wait()

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return &engine.Failure{Reason: "download interrupted", ExitCode: -1, Err: ctx.Err()}
	}

	if waitErr != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return &engine.Failure{Reason: diag.reason(waitErr), ExitCode: exitCode, Err: waitErr}
	}

	if err := errors.Join(stdoutErr, stderrErr); err != nil {
		return fmt.Errorf("failed to read yt-dlp output: %w", err)
	}

	return nil
}

// diagnostics keeps what is needed to explain a failed run.
type diagnostics struct {
	lastError string
	lastLine  string
}

func (d *diagnostics) add(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	if strings.HasPrefix(trimmed, "ERROR:") {
		d.lastError = trimmed
	}

	d.lastLine = trimmed
}

func (d *diagnostics) reason(fallback error) string {
	switch {
	case d.lastError != "":
		return errorReason(d.lastError)
	case d.lastLine != "":
		return d.lastLine
	default:
		return fallback.Error()
	}
}
