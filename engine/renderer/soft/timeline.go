package soft

import (
	"sync"
	"time"

	"github.com/spaghettifunk/lumen/engine/containers"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// op is one unit of GPU timeline work: either a command list submission
// that signals a fence value on retirement, or a presentation.
type op struct {
	commands   []renderer.Command
	fence      uint64
	present    renderer.ImageID
	hasPresent bool
}

type fenceWaiter struct {
	value uint64
	ch    chan struct{}
}

// timeline models the single GPU execution timeline: submissions retire
// strictly in order, each signaling its fence value. In automatic mode a
// dedicated goroutine drains the queue; in manual mode the test advances
// the clock one submission at a time via Step.
type timeline struct {
	mu        sync.Mutex
	pending   *containers.RingQueue[op]
	completed uint64
	waiters   []fenceWaiter
	err       error

	execute func(op) error

	manual   bool
	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func newTimeline(queueDepth int, manual bool, execute func(op) error) *timeline {
	t := &timeline{
		pending: containers.NewRingQueue[op](queueDepth),
		execute: execute,
		manual:  manual,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if !manual {
		go t.run()
	} else {
		close(t.done)
	}
	return t
}

func (t *timeline) enqueue(o op) error {
	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return t.err
	}
	err := t.pending.Enqueue(o)
	t.mu.Unlock()
	if err != nil {
		// The ring is sized for the frame ring plus presents; overflow
		// means the retirement contract was broken somewhere upstream.
		return core.ErrDeviceLost
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

func (t *timeline) run() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			// Drain whatever is still queued so shutdown waits can
			// complete.
			for t.step() {
			}
			return
		case <-t.wake:
			for t.step() {
			}
		}
	}
}

// step executes exactly one pending submission and signals its fence.
// Returns false when the queue is empty.
func (t *timeline) step() bool {
	t.mu.Lock()
	o, err := t.pending.Dequeue()
	t.mu.Unlock()
	if err != nil {
		return false
	}

	if execErr := t.execute(o); execErr != nil {
		core.LogError("timeline execution failed: %v", execErr)
		t.mu.Lock()
		t.err = core.ErrDeviceLost
		t.mu.Unlock()
	}
	// Presents carry fence 0; signal still runs to release waiters after
	// an execution error.
	t.signal(o.fence)
	return true
}

func (t *timeline) signal(value uint64) {
	t.mu.Lock()
	if value > t.completed {
		t.completed = value
	}
	remaining := t.waiters[:0]
	for _, w := range t.waiters {
		if w.value <= t.completed || t.err != nil {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	t.waiters = remaining
	t.mu.Unlock()
}

func (t *timeline) completedValue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// waitFor blocks until the timeline reaches value or the timeout expires.
func (t *timeline) waitFor(value uint64, timeout time.Duration) error {
	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return t.err
	}
	if value <= t.completed {
		t.mu.Unlock()
		return nil
	}
	w := fenceWaiter{value: value, ch: make(chan struct{})}
	t.waiters = append(t.waiters, w)
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.ch:
		t.mu.Lock()
		err := t.err
		t.mu.Unlock()
		return err
	case <-timer.C:
		return core.ErrFenceTimeout
	}
}

// shutdown retires everything still queued, then stops the timeline. Safe
// to call more than once.
func (t *timeline) shutdown() {
	if t.manual {
		for t.step() {
		}
		return
	}
	t.quitOnce.Do(func() { close(t.quit) })
	select {
	case t.wake <- struct{}{}:
	default:
	}
	<-t.done
}
