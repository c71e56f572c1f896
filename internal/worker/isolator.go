package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// PayloadFlag carries the envelope to the child process.
const PayloadFlag = "payload"

// ExitError reports a child that ran but did not exit 0.
type ExitError struct {
	Code     int
	TimedOut bool
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("worker: child killed after timeout (exit code %d)", e.Code)
	}
	return fmt.Sprintf("worker: child exited with code %d", e.Code)
}

// Recorder is told the outcome of every child run.
type Recorder interface {
	ChildExited(queue string, err error)
}

// Isolator runs each envelope in a fresh copy of the worker binary:
//
//	<Executable> [Args...] <Queue> --payload=<envelope>
type Isolator struct {
	Executable string
	// Args are placed before the queue name.
	Args  []string
	Queue string
	// Env defaults to the whole parent environment.
	Env []string
	// Stdout and Stderr default to the parent's.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout kills the child when it elapses. Zero means no limit.
	Timeout  time.Duration
	Recorder Recorder
	Log      *zap.Logger
}

// NewIsolator returns an Isolator that re-executes the running binary.
func NewIsolator(queueName string, log *zap.Logger) (*Isolator, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("worker: resolve executable: %w", err)
	}
	return &Isolator{Executable: exe, Queue: queueName, Log: log}, nil
}

func (i *Isolator) Run(ctx context.Context, envelope []byte) (err error) {
	if i.Recorder != nil {
		defer func() { i.Recorder.ChildExited(i.Queue, err) }()
	}

	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, i.Args...), i.Queue, "--"+PayloadFlag+"="+string(envelope))
	cmd := exec.CommandContext(ctx, i.Executable, args...)
	cmd.Env = i.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Stdout = writerOr(i.Stdout, os.Stdout)
	cmd.Stderr = writerOr(i.Stderr, os.Stderr)

	log := i.logger()
	start := time.Now()
	err = cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		log.Debug("child finished", zap.Duration("elapsed", time.Since(start)))
		return nil
	case errors.As(err, &exitErr):
		e := &ExitError{
			Code:     exitErr.ExitCode(),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
		log.Warn("child failed", zap.Int("exit_code", e.Code), zap.Bool("timed_out", e.TimedOut))
		return e
	}
	return fmt.Errorf("worker: spawn child: %w", err)
}

func (i *Isolator) logger() *zap.Logger {
	if i.Log == nil {
		return zap.NewNop()
	}
	return i.Log.Named("isolator")
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
