package background

import (
	"context"
	"sync"
	"time"
)

// Scope - groups goroutines which share one cancellation signal,
// so the owner can stop them all at once and wait until they return.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder.
// Returned cancel func cancels the scope context and blocks until all members are done.
func NewScope() (scope *Scope, cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())
	b := &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
	}
	return b,
		func() {
			b.ctxCancel()
			b.scope.Wait()
		}
}

// Context - return background context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Expired - reports the scope context was cancelled.
func (s *Scope) Expired() bool {
	return s.ctx.Err() != nil
}

// Add - notifies scope to register processes/workers/layers.
// Based on sync.WaitGroup.
func (s *Scope) Add(delta int) {
	s.scope.Add(delta)
}

// Done - notifies scope when process/worker/layer is done.
// Based on sync.WaitGroup.
func (s *Scope) Done() {
	s.scope.Done()
}

// Go - runs f in new goroutine as member of the scope.
func (s *Scope) Go(f func(ctx context.Context)) {
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
}

// Stop - cancels scope context without waiting for members.
func (s *Scope) Stop() {
	s.ctxCancel()
}

// Wait - blocks until all members are done or timeout is expired.
// Returns false on timeout. Zero or negative timeout means wait forever.
func (s *Scope) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.scope.Wait()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
