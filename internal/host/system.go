package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"overseer/internal/audit"
	"overseer/internal/quit"
	"overseer/internal/registry"
	"overseer/pkg/logx"
)

// System is the shared context handed to every task at spawn time.
// Tasks discover each other's resources through the registry, never
// through direct references.
type System struct {
	Registry *registry.Registry
	Bus      *quit.Bus
	Log      logx.Logger
	LogSvc   *logx.Service // nil when running with a standalone logger
	Audit    audit.Store   // nil when auditing is disabled
}

func NewSystem(log logx.Logger) *System {
	return &System{
		Registry: registry.New(),
		Bus:      quit.NewBus(),
		Log:      log,
	}
}

// RecordEvent writes a task lifecycle event to the audit store,
// best-effort. Auditing must never take a task down.
func (s *System) RecordEvent(task, event string, err error, took time.Duration) {
	if s.Audit == nil {
		return
	}
	e := audit.TaskEvent{At: time.Now(), Task: task, Event: event, TookMS: took.Milliseconds()}
	if err != nil {
		e.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if aerr := s.Audit.AppendEvent(ctx, e); aerr != nil {
		s.Log.Warn("audit append failed", logx.String("task", task), logx.Err(aerr))
	}
}

// Task is a configured, independently spawnable unit of work.
//
// Spawn may be called at most once per instance. Returning (nil, nil)
// means the task is disabled by configuration, which is not an error.
// A returned error means the task could not even start; the supervisor
// converts it into a global shutdown request.
type Task interface {
	Name() string
	Spawn(sys *System) (*Handle, error)
}

// Handle is the join point for one running task. It resolves to either
// success, an application error, or a join failure (the goroutine
// panicked).
type Handle struct {
	name  string
	done  chan struct{}
	err   error
	panic error
	stack string
}

func (h *Handle) Name() string { return h.name }

// Done is closed once the task goroutine has fully exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Join blocks until the task exits and returns its application error
// and its join failure. At most one of the two is non-nil.
func (h *Handle) Join() (appErr, joinErr error) {
	<-h.done
	return h.err, h.panic
}

// Stack returns the captured goroutine stack after a join failure.
func (h *Handle) Stack() string {
	<-h.done
	return h.stack
}

// Go starts fn on its own goroutine with panic capture and returns its
// Handle. A panic becomes a join failure, not a process crash.
func Go(name string, log logx.Logger, fn func() error) *Handle {
	h := &Handle{name: name, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.stack = string(debug.Stack())
				h.panic = fmt.Errorf("panic in %s: %v", name, r)
				if !log.IsZero() {
					log.Error("task panicked", logx.String("task", name),
						logx.Any("panic", r), logx.Stack(h.stack))
				}
			}
		}()
		if !log.IsZero() {
			log.Debug("task started", logx.String("task", name))
		}
		h.err = fn()
		if !log.IsZero() {
			log.Debug("task stopped", logx.String("task", name))
		}
	}()
	return h
}
