// Package job implements the job lifecycle: a Job is built from a registered
// Handler, processed exactly once by Handle, and on failure either put back
// at the head of its queue or sent down the dead-letter path.
package job

import (
	"context"

	"go.uber.org/zap"

	"redis-job-worker/internal/backoff"
	"redis-job-worker/internal/queue"
)

// Handler is the logic of one job type.
type Handler interface {
	// Process does the work. A returned error fails the job.
	Process(ctx context.Context, j *Job) error
	// OnSuccess runs after Process returned nil.
	OnSuccess(ctx context.Context, j *Job)
	// OnFail runs after the retry decision, so j already carries the
	// updated retry count.
	OnFail(ctx context.Context, j *Job, err error)
	// Dead runs once when a job fails with no retries left.
	Dead(ctx context.Context, j *Job)
}

// DeadLetterSink records exhausted jobs. *queue.DeadLetters implements it.
type DeadLetterSink interface {
	Push(ctx context.Context, queue string, envelope []byte, cause error) (queue.DeadEntry, error)
}

// Runtime carries the process-wide resources jobs use. It is built once at
// process start and shared by every job of that process.
type Runtime struct {
	Transport queue.Transport
	// DeadLetters is optional.
	DeadLetters DeadLetterSink
	// Observer is optional.
	Observer Observer
	Logger   *zap.Logger
}

func (rt *Runtime) observer() Observer {
	if rt.Observer == nil {
		return nopObserver{}
	}
	return rt.Observer
}

func (rt *Runtime) logger() *zap.Logger {
	if rt.Logger == nil {
		return zap.NewNop()
	}
	return rt.Logger
}

// State is the position of a job in its lifecycle.
type State int

const (
	StatePending State = iota
	StateProcessing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Mode selects the end of the queue a dispatch pushes to.
type Mode int

const (
	Append  Mode = iota // tail
	Prepend             // head
)

func (m Mode) String() string {
	if m == Prepend {
		return "prepend"
	}
	return "append"
}

// Job is one unit of work. It is owned by a single execution and must not
// be shared between goroutines.
type Job struct {
	class      string
	queue      string
	data       *queue.Data
	retries    int
	maxRetries int

	state     State
	processed bool
	lastErr   error

	handler Handler
	backoff backoff.Strategy
	rt      *Runtime
	log     *zap.Logger
}

func newJob(rt *Runtime, class string, def definition) *Job {
	if rt == nil {
		rt = &Runtime{}
	}
	return &Job{
		class:      class,
		queue:      def.opts.Queue,
		data:       queue.NewData(),
		maxRetries: def.opts.MaxRetries,
		handler:    def.ctor(),
		backoff:    def.opts.Backoff,
		rt:         rt,
		log:        rt.logger().Named("job").With(zap.String("class", class)),
	}
}

func (j *Job) Class() string { return j.class }

func (j *Job) Queue() string { return j.queue }

// SetQueue overrides the queue the job is dispatched and requeued to.
func (j *Job) SetQueue(name string) *Job {
	j.queue = name
	return j
}

// Data is the job's working payload. Changes made during Process travel with
// a requeue.
func (j *Job) Data() *queue.Data { return j.data }

// SetData overwrites the whole payload.
func (j *Job) SetData(d *queue.Data) *Job {
	j.data.Replace(d)
	return j
}

func (j *Job) Retries() int { return j.retries }

func (j *Job) SetRetries(n int) *Job {
	j.retries = n
	return j
}

func (j *Job) MaxRetries() int { return j.maxRetries }

func (j *Job) SetMaxRetries(n int) *Job {
	j.maxRetries = n
	return j
}

// IsRetriable reports whether another requeue is allowed.
func (j *Job) IsRetriable() bool {
	return j.retries < j.maxRetries
}

func (j *Job) State() State { return j.state }

// Completed reports whether Handle has finished.
func (j *Job) Completed() bool { return j.processed }

// Succeeded reports the success flag. set is false until Handle decided.
func (j *Job) Succeeded() (ok, set bool) {
	switch j.state {
	case StateSucceeded:
		return true, true
	case StateFailed:
		return false, true
	}
	return false, false
}

// Failed reports the failure flag. set is false until Handle decided.
func (j *Job) Failed() (failed, set bool) {
	return j.state == StateFailed, j.state == StateSucceeded || j.state == StateFailed
}

// Err is the error returned by Process, if any.
func (j *Job) Err() error { return j.lastErr }

// Backoff is the delay strategy applied before a requeue.
func (j *Job) Backoff() backoff.Strategy { return j.backoff }

// Handler returns the job type logic bound to this instance.
func (j *Job) Handler() Handler { return j.handler }

// Logger is a logger tagged with the job class.
func (j *Job) Logger() *zap.Logger { return j.log }

// Envelope is a snapshot of the job in wire form. Later payload changes do
// not show up in it.
func (j *Job) Envelope() queue.Envelope {
	return queue.Envelope{
		JobClass: j.class,
		Payload:  j.data.Clone(),
		Retries:  j.retries,
	}
}
