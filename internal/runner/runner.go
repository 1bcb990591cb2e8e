// Package runner drives the claude CLI in headless mode. Each phase of
// the evolution loop is one subprocess invocation with a tool allowlist
// scoped to what that phase is permitted to do.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Tool allowlists per phase. Observation and planning may read and run
// commands but never edit; only Execute gets write access; Scout may
// fetch the web.
const (
	ObserveTools = "Read,Glob,Grep,Bash"
	PlanTools    = "Read,Glob,Grep,Bash"
	ExecuteTools = "Read,Glob,Grep,Edit,Write,Bash"
	MetaTools    = "Read,Glob,Grep,Bash"
	ScoutTools   = "Read,WebFetch,Bash"
)

const (
	defaultTimeout = 30 * time.Minute

	rateLimitBaseWait = 30 * time.Second
	maxRateRetries    = 3
)

var rateLimitSignals = []string{"rate limit", "429", "too many requests", "overloaded"}

// Result is the outcome of one LM invocation.
type Result struct {
	Output          string
	Success         bool
	NumTurns        int
	DurationSeconds float64
	RateLimited     bool
	MaxTurnsReached bool
	Stderr          string
}

// Request describes one LM invocation.
type Request struct {
	Prompt       string
	Model        string
	MaxTurns     int
	AllowedTools string
	Dir          string

	// Timeout bounds the subprocess; zero means the default.
	Timeout time.Duration
}

// Runner executes LM requests. The command name and sleep function are
// injectable for tests.
type Runner struct {
	command string
	sleep   func(time.Duration)
	logger  *zap.SugaredLogger
}

// New returns a Runner using the claude binary from PATH.
func New() *Runner {
	return &Runner{command: "claude", sleep: time.Sleep, logger: zap.S()}
}

// Run executes one request, retrying with exponential backoff when the
// CLI reports rate limiting (30s, 60s, 120s, then give up).
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := r.runOnce(ctx, req)
		if err != nil {
			return nil, err
		}
		if !result.RateLimited || attempt >= maxRateRetries {
			return result, nil
		}

		delay := rateLimitBaseWait * (1 << attempt)
		r.logger.Warnw("rate limited, backing off",
			"attempt", attempt+1, "max", maxRateRetries, "delay", delay)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		r.sleep(delay)
	}
}

func (r *Runner) runOnce(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-p", req.Prompt,
		"--model", req.Model,
		"--output-format", "stream-json",
		"--verbose",
		"--max-turns", fmt.Sprint(req.MaxTurns),
		"--allowedTools", req.AllowedTools,
		"--no-session-persistence",
		"--setting-sources", "user",
	}

	cmd := exec.CommandContext(runCtx, r.command, args...)
	cmd.Dir = req.Dir
	cmd.WaitDelay = 10 * time.Second // interrupt first, kill if ignored

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", r.command, err)
	}

	var stream streamResult
	var stderrBuf bytes.Buffer

	// stdout and stderr must drain concurrently or a chatty process
	// deadlocks on a full pipe.
	g := new(errgroup.Group)
	g.Go(func() error {
		stream = parseStream(stdout)
		return stream.err
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteByte('\n')
		}
		return nil
	})

	readErr := g.Wait()
	waitErr := cmd.Wait()
	elapsed := time.Since(started).Seconds()

	stderrText := stderrBuf.String()
	output := stream.output()

	result := &Result{
		Output:          output,
		NumTurns:        stream.numTurns,
		DurationSeconds: elapsed,
		Stderr:          stderrText,
	}
	result.RateLimited = isRateLimited(output) || isRateLimited(stderrText)
	result.MaxTurnsReached = strings.Contains(output, "Error: Reached max turns")

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Errorw("lm run timed out", "elapsed", elapsed, "timeout", timeout)
		result.Success = false
		return result, nil
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading lm output: %w", readErr)
	}

	result.Success = waitErr == nil && !stream.isError && strings.TrimSpace(output) != ""
	if waitErr != nil {
		r.logger.Warnw("lm exited nonzero", "err", waitErr, "stderr", truncate(stderrText, 500))
	}
	return result, nil
}

func isRateLimited(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range rateLimitSignals {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
