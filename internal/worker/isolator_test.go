package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is the child started by the isolator tests. It is not a
// real test and does nothing unless GO_WANT_HELPER_PROCESS is set.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "missing queue or payload")
		os.Exit(2)
	}
	queueName := args[1]
	payload := strings.TrimPrefix(args[2], "--"+PayloadFlag+"=")

	fmt.Fprintf(os.Stdout, "queue=%s payload=%s marker=%s\n", queueName, payload, os.Getenv("ISOLATOR_MARKER"))
	fmt.Fprintln(os.Stderr, "to stderr")

	switch payload {
	case "fail":
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recorded struct {
	mu      sync.Mutex
	results []error
}

func (r *recorded) ChildExited(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, err)
}

func helperIsolator(t *testing.T) (*Isolator, *syncBuffer, *syncBuffer) {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("ISOLATOR_MARKER", "inherited")

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	return &Isolator{
		Executable: os.Args[0],
		Args:       []string{"-test.run=TestHelperProcess", "--"},
		Queue:      "emails",
		Stdout:     stdout,
		Stderr:     stderr,
	}, stdout, stderr
}

func TestIsolatorSuccess(t *testing.T) {
	iso, stdout, stderr := helperIsolator(t)

	require.NoError(t, iso.Run(context.Background(), []byte("ok")))
	assert.Contains(t, stdout.String(), "queue=emails payload=ok marker=inherited")
	assert.Contains(t, stderr.String(), "to stderr")
}

func TestIsolatorPassesEnvelopeVerbatim(t *testing.T) {
	iso, stdout, _ := helperIsolator(t)

	envelope := `{"jobClass":"x","payload":{"msg":"a b"},"retries":0}`
	require.NoError(t, iso.Run(context.Background(), []byte(envelope)))
	assert.Contains(t, stdout.String(), "payload="+envelope)
}

func TestIsolatorExitCode(t *testing.T) {
	iso, _, _ := helperIsolator(t)
	rec := &recorded{}
	iso.Recorder = rec

	err := iso.Run(context.Background(), []byte("fail"))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.False(t, exitErr.TimedOut)
	require.Len(t, rec.results, 1)
	assert.Equal(t, err, rec.results[0])
}

func TestIsolatorTimeout(t *testing.T) {
	iso, _, _ := helperIsolator(t)
	iso.Timeout = 200 * time.Millisecond

	start := time.Now()
	err := iso.Run(context.Background(), []byte("hang"))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.True(t, exitErr.TimedOut)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestIsolatorSpawnFailure(t *testing.T) {
	iso := &Isolator{Executable: "/nonexistent/worker-binary", Queue: "q"}

	err := iso.Run(context.Background(), []byte("{}"))
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "worker: child exited with code 2", (&ExitError{Code: 2}).Error())
	assert.Contains(t, (&ExitError{Code: -1, TimedOut: true}).Error(), "timeout")
}
