package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCLI writes an executable shell script that stands in for the
// claude binary and returns a Runner pointed at it.
func fakeCLI(t *testing.T, script string) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return &Runner{command: path, sleep: func(time.Duration) {}, logger: zap.NewNop().Sugar()}
}

// --- parseStream ---

func TestParseStream_PrefersResultEvent(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"thinking"}]}}`,
		"diagnostic noise that is not json",
		`{"type":"assistant","message":{"content":[{"type":"tool_use"},{"type":"text","text":"more"}]}}`,
		`{"type":"result","result":"final answer","is_error":false,"num_turns":4}`,
	}, "\n")

	stream := parseStream(strings.NewReader(input))
	require.NoError(t, stream.err)
	assert.Equal(t, "final answer", stream.output())
	assert.Equal(t, 4, stream.numTurns)
	assert.False(t, stream.isError)
}

func TestParseStream_FallsBackToAssistantText(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"part one"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"part two"}]}}`,
	}, "\n")

	stream := parseStream(strings.NewReader(input))
	assert.Equal(t, "part one\npart two", stream.output())

	// An empty result string also falls back.
	stream = parseStream(strings.NewReader(input + "\n" + `{"type":"result","result":"  "}`))
	assert.Equal(t, "part one\npart two", stream.output())
}

func TestParseStream_ErrorResult(t *testing.T) {
	stream := parseStream(strings.NewReader(`{"type":"result","result":"boom","is_error":true,"num_turns":1}`))
	assert.True(t, stream.isError)
	assert.Equal(t, "boom", stream.output())
}

// --- isRateLimited ---

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited("HTTP 429 Too Many Requests"))
	assert.True(t, isRateLimited("the API is Overloaded right now"))
	assert.False(t, isRateLimited("all good"))
	assert.False(t, isRateLimited(""))
}

// --- truncate ---

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefghij", 5))
}

// --- Run ---

func TestRun_Success(t *testing.T) {
	r := fakeCLI(t, `
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}'
echo '{"type":"result","result":"all done","is_error":false,"num_turns":7}'
`)

	res, err := r.Run(context.Background(), Request{Prompt: "p", Model: "sonnet", MaxTurns: 5, AllowedTools: ObserveTools})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "all done", res.Output)
	assert.Equal(t, 7, res.NumTurns)
	assert.False(t, res.RateLimited)
}

func TestRun_NonzeroExitFails(t *testing.T) {
	r := fakeCLI(t, `
echo "fatal: something broke" >&2
exit 1
`)

	res, err := r.Run(context.Background(), Request{Prompt: "p", Model: "sonnet"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "something broke")
}

func TestRun_EmptyOutputFails(t *testing.T) {
	r := fakeCLI(t, "exit 0\n")

	res, err := r.Run(context.Background(), Request{Prompt: "p", Model: "sonnet"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestRun_RateLimitBacksOff(t *testing.T) {
	r := fakeCLI(t, `
echo '{"type":"result","result":"rate limit exceeded, retry later","is_error":true}'
`)
	var delays []time.Duration
	r.sleep = func(d time.Duration) { delays = append(delays, d) }

	res, err := r.Run(context.Background(), Request{Prompt: "p", Model: "sonnet"})
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
	require.Len(t, delays, maxRateRetries)
	assert.Equal(t, rateLimitBaseWait, delays[0])
	assert.Equal(t, 2*rateLimitBaseWait, delays[1])
	assert.Equal(t, 4*rateLimitBaseWait, delays[2])
}

func TestRun_Timeout(t *testing.T) {
	r := fakeCLI(t, "sleep 5\n")

	res, err := r.Run(context.Background(), Request{Prompt: "p", Model: "sonnet", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, res.Success)
}
