package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"overseer/internal/registry"
	"overseer/pkg/logx"
)

// fakeTask blocks on the quit bus until signaled, like a well-behaved
// long-running task.
type fakeTask struct {
	name     string
	enabled  bool
	spawnErr error
	exitErr  error
	doPanic  bool
	body     func(sys *System) error
}

func (t *fakeTask) Name() string { return t.name }

func (t *fakeTask) Spawn(sys *System) (*Handle, error) {
	if t.spawnErr != nil {
		return nil, t.spawnErr
	}
	if !t.enabled {
		return nil, nil
	}
	return Go(t.name, sys.Log, func() error {
		if t.doPanic {
			panic("boom")
		}
		if t.body != nil {
			return t.body(sys)
		}
		<-sys.Bus.Done()
		return t.exitErr
	}), nil
}

func newTestSystem() *System { return NewSystem(logx.Nop()) }

func TestExternalSignalDrainsRunLoop(t *testing.T) {
	t.Parallel()
	sys := newTestSystem()
	sup := NewSupervisor(sys,
		&fakeTask{name: "daemon", enabled: true},
		&fakeTask{name: "web", enabled: false},
	)

	if err := sup.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if sup.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 (disabled task spawns no handle)", sup.Pending())
	}

	done := make(chan struct{})
	go func() {
		sup.RunLoop()
		close(done)
	}()

	sys.Bus.Signal()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not drain after an external signal")
	}
	if sup.Pending() != 0 {
		t.Fatalf("Pending = %d after drain", sup.Pending())
	}
}

func TestDoubleStartupFails(t *testing.T) {
	t.Parallel()
	sup := NewSupervisor(newTestSystem())
	if err := sup.Startup(); err != nil {
		t.Fatalf("first Startup: %v", err)
	}
	if err := sup.Startup(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Startup = %v, want ErrAlreadyStarted", err)
	}
}

func TestSpawnErrorSignalsBusAndStartsRest(t *testing.T) {
	t.Parallel()
	sys := newTestSystem()
	sup := NewSupervisor(sys,
		&fakeTask{name: "broken", spawnErr: errors.New("bind failed")},
		&fakeTask{name: "daemon", enabled: true},
	)

	if err := sup.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if !sys.Bus.Signaled() {
		t.Fatal("a spawn failure must request global shutdown")
	}
	// The surviving task observes the signal, so the loop drains alone.
	doneBy := time.After(2 * time.Second)
	done := make(chan struct{})
	go func() {
		sup.RunLoop()
		close(done)
	}()
	select {
	case <-done:
	case <-doneBy:
		t.Fatal("RunLoop did not drain")
	}
}

func TestRunLoopSurvivesTaskFailures(t *testing.T) {
	t.Parallel()
	sys := newTestSystem()
	sup := NewSupervisor(sys,
		&fakeTask{name: "panicky", enabled: true, doPanic: true},
		&fakeTask{name: "failing", enabled: true, body: func(sys *System) error {
			return sys.Bus.OnError(errors.New("listener died"))
		}},
		&fakeTask{name: "steady", enabled: true},
	)

	if err := sup.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Reaching here means the loop drained: the panic was contained,
	// the error task's OnError signaled the bus, and steady unwound.
	if !sys.Bus.Signaled() {
		t.Fatal("failing task should have signaled the bus")
	}
}

func TestHandleSeparatesAppErrorFromJoinFailure(t *testing.T) {
	t.Parallel()
	appErr := errors.New("app error")

	h := Go("app", logx.Nop(), func() error { return appErr })
	gotApp, gotJoin := h.Join()
	if !errors.Is(gotApp, appErr) || gotJoin != nil {
		t.Fatalf("Join = (%v, %v)", gotApp, gotJoin)
	}

	h = Go("crash", logx.Nop(), func() error { panic("kaboom") })
	gotApp, gotJoin = h.Join()
	if gotApp != nil || gotJoin == nil {
		t.Fatalf("Join = (%v, %v), want join failure only", gotApp, gotJoin)
	}
	if h.Stack() == "" {
		t.Fatal("join failure should capture a stack")
	}
}

// Producer inserts a shared resource; a consumer that started waiting
// first still obtains an equal handle once the insert lands.
func TestResourceHandoffThroughRegistry(t *testing.T) {
	t.Parallel()
	sys := newTestSystem()

	type poolHandle struct{ uri string }
	want := &poolHandle{uri: "postgres://shared"}

	got := make(chan *poolHandle, 1)
	consumer := &fakeTask{name: "consumer", enabled: true, body: func(sys *System) error {
		h, err := registry.WaitValue[*poolHandle](context.Background(), sys.Registry, 2*time.Second)
		if err != nil {
			return err
		}
		got <- h
		<-sys.Bus.Done()
		return nil
	}}
	producer := &fakeTask{name: "producer", enabled: true, body: func(sys *System) error {
		time.Sleep(20 * time.Millisecond)
		if err := registry.Insert(sys.Registry, want); err != nil {
			return sys.Bus.OnError(err)
		}
		<-sys.Bus.Done()
		_, _ = registry.Remove[*poolHandle](sys.Registry)
		return nil
	}}

	sup := NewSupervisor(sys, consumer, producer)
	if err := sup.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	select {
	case h := <-got:
		if h != want {
			t.Fatal("consumer saw a different handle")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never received the shared resource")
	}

	sys.Bus.Signal()
	sup.RunLoop()
}
