package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the process-wide engine session state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotReady is returned when a caller gives up waiting for the engine.
	ErrNotReady = errors.New("geospatial engine not ready")

	errInitInProgress = errors.New("engine initialization already in progress")
)

// Lifecycle tracks Uninitialized -> Initializing -> Ready. Ready is terminal;
// a failed initialization returns to Uninitialized so it can be retried.
type Lifecycle struct {
	mu    sync.Mutex
	state State
	ready chan struct{}
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{ready: make(chan struct{})}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ready reports whether initialization has completed.
func (l *Lifecycle) Ready() bool {
	return l.State() == StateReady
}

// TryInitialize runs init unless the engine is already ready or another
// initialization is running.
func (l *Lifecycle) TryInitialize(ctx context.Context, init func(context.Context) error) error {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateInitializing:
		l.mu.Unlock()
		return errInitInProgress
	}
	l.state = StateInitializing
	l.mu.Unlock()

	err := init(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state = StateUninitialized
		return err
	}
	l.state = StateReady
	close(l.ready)
	return nil
}

// Wait blocks until the engine is ready or ctx is done.
func (l *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	default:
	}
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	}
}

// Done is closed once the engine becomes ready.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.ready
}
