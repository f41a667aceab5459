package host

import (
	"errors"
	"sync"
	"time"

	"overseer/internal/audit"
	"overseer/pkg/logx"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

// Supervisor owns the configured task set: it spawns every task once,
// collects the resulting handles, and drains them to completion.
type Supervisor struct {
	sys   *System
	tasks []Task

	mu      sync.Mutex
	started bool
	handles []*Handle
}

func NewSupervisor(sys *System, tasks ...Task) *Supervisor {
	return &Supervisor{sys: sys, tasks: tasks}
}

// Startup spawns every configured task exactly once. Calling it twice
// is a programming error and fails with ErrAlreadyStarted.
//
// A task failing to spawn does not abort startup: the failure is
// logged, audited, and turned into a global shutdown request via the
// quit bus, so every task that did start unwinds cleanly.
func (s *Supervisor) Startup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || len(s.handles) > 0 {
		return ErrAlreadyStarted
	}
	s.started = true

	for _, task := range s.tasks {
		began := time.Now()
		h, err := task.Spawn(s.sys)
		if err != nil {
			s.sys.Log.Error("task failed to spawn",
				logx.String("task", task.Name()), logx.Err(err))
			s.sys.RecordEvent(task.Name(), audit.EventFailed, err, time.Since(began))
			_ = s.sys.Bus.OnError(err)
			continue
		}
		if h == nil {
			s.sys.Log.Debug("task disabled", logx.String("task", task.Name()))
			s.sys.RecordEvent(task.Name(), audit.EventDisabled, nil, 0)
			continue
		}
		s.sys.Log.Info("task spawned", logx.String("task", h.Name()))
		s.sys.RecordEvent(h.Name(), audit.EventSpawned, nil, 0)
		s.handles = append(s.handles, h)
	}
	return nil
}

// RunLoop joins spawned tasks one at a time until none remain. Task
// outcomes are logged and audited, never propagated: a failed task has
// already requested shutdown through the bus, and the loop's only job
// is to wait for everyone to unwind.
func (s *Supervisor) RunLoop() {
	for {
		h := s.pop()
		if h == nil {
			return
		}

		began := time.Now()
		appErr, joinErr := h.Join()
		took := time.Since(began)

		switch {
		case joinErr != nil:
			s.sys.Log.Error("task join failure",
				logx.String("task", h.Name()), logx.Err(joinErr))
			s.sys.RecordEvent(h.Name(), audit.EventJoinFailed, joinErr, took)
		case appErr != nil:
			s.sys.Log.Error("task exited with error",
				logx.String("task", h.Name()), logx.Err(appErr))
			s.sys.RecordEvent(h.Name(), audit.EventFailed, appErr, took)
		default:
			s.sys.Log.Info("task completed", logx.String("task", h.Name()))
			s.sys.RecordEvent(h.Name(), audit.EventCompleted, nil, took)
		}
	}
}

// Run is Startup followed by RunLoop.
func (s *Supervisor) Run() error {
	if err := s.Startup(); err != nil {
		return err
	}
	s.RunLoop()
	s.sys.RecordEvent("supervisor", audit.EventShutdown, nil, 0)
	return nil
}

// Pending reports how many handles are still waiting to be joined.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Supervisor) pop() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return nil
	}
	h := s.handles[len(s.handles)-1]
	s.handles = s.handles[:len(s.handles)-1]
	return h
}
