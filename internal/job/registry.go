package job

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"redis-job-worker/internal/backoff"
	"redis-job-worker/internal/queue"
)

var ErrUnknownClass = errors.New("unknown job class")

// DefaultQueue is used when a job type names no queue of its own.
const DefaultQueue = "default"

// DefaultMaxRetries is the retry budget of a job type that does not set one.
const DefaultMaxRetries = 3

// Constructor builds a fresh Handler for one job instance.
type Constructor func() Handler

// Options configures a registered job type.
type Options struct {
	Queue      string
	MaxRetries int
	Backoff    backoff.Strategy
}

func DefaultOptions() Options {
	return Options{
		Queue:      DefaultQueue,
		MaxRetries: DefaultMaxRetries,
		Backoff:    backoff.Default(),
	}
}

type Option func(*Options)

func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithBackoff replaces the fixed five second pause before a requeue.
func WithBackoff(s backoff.Strategy) Option {
	return func(o *Options) { o.Backoff = s }
}

type definition struct {
	ctor Constructor
	opts Options
}

// Registry maps job class names to constructors. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]definition
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]definition)}
}

// Register binds class to ctor. Registering a class twice replaces the
// previous definition.
func (r *Registry) Register(class string, ctor Constructor, opts ...Option) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[class] = definition{ctor: ctor, opts: o}
}

func (r *Registry) Has(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[class]
	return ok
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a fresh pending job of class with empty data, for dispatch.
func (r *Registry) New(rt *Runtime, class string) (*Job, error) {
	def, err := r.lookup(class)
	if err != nil {
		return nil, err
	}
	return newJob(rt, class, def), nil
}

// FromEnvelope rebuilds a pending job from a dequeued envelope.
func (r *Registry) FromEnvelope(rt *Runtime, env queue.Envelope) (*Job, error) {
	def, err := r.lookup(env.JobClass)
	if err != nil {
		return nil, err
	}
	j := newJob(rt, env.JobClass, def)
	if env.Payload != nil {
		j.data = env.Payload
	}
	j.retries = env.Retries
	return j, nil
}

func (r *Registry) lookup(class string) (definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[class]
	if !ok {
		return definition{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return def, nil
}
