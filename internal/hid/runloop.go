package hid

import (
	"errors"
	"sync"
	"sync/atomic"
)

// RunLoop executes scheduled work serially on a single goroutine. HID
// callbacks always run on the loop a manager is scheduled with.
type RunLoop struct {
	running atomic.Bool
	once    sync.Once

	queue    chan func()
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewRunLoop creates a stopped run loop.
func NewRunLoop() *RunLoop {
	return &RunLoop{
		queue:    make(chan func(), 64),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the loop goroutine. A loop can be started once.
func (l *RunLoop) Start() error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("run loop already running")
	}
	select {
	case <-l.stopChan:
		l.running.Store(false)
		return errors.New("run loop stopped")
	default:
	}
	go l.run()
	return nil
}

func (l *RunLoop) run() {
	defer close(l.doneChan)
	for {
		select {
		case <-l.stopChan:
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Perform queues fn. It returns false when the loop is not running.
func (l *RunLoop) Perform(fn func()) bool {
	if !l.running.Load() {
		return false
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.stopChan:
		return false
	}
}

// PerformAndWait queues fn and blocks until it has run. It returns false if
// the loop stopped first.
func (l *RunLoop) PerformAndWait(fn func()) bool {
	done := make(chan struct{})
	if !l.Perform(func() { fn(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.doneChan:
		return false
	}
}

// Stop ends the loop and waits for the running callback, if any, to
// return. Queued callbacks that have not started are dropped.
func (l *RunLoop) Stop() {
	l.once.Do(func() { close(l.stopChan) })
	if l.running.CompareAndSwap(true, false) {
		<-l.doneChan
	}
}

// IsRunning reports whether the loop is accepting work.
func (l *RunLoop) IsRunning() bool {
	return l.running.Load()
}
