// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bgpool implements a bounded worker pool shared by every table in
// the process. Each table registers one recurring task; workers drive the
// registered tasks round-robin. A task that reports useful work is retried
// promptly, since one merge often enables the next; a task that reports
// nothing to do backs off with a doubling idle delay so that a process full
// of idle tables does not busy-poll.
package bgpool

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/snowzjy/ClickHouse/internal/base"
)

// Task is one recurring unit of background work. It returns true if it did
// useful work and should be invoked again promptly.
type Task func() bool

// Options configures a Pool.
type Options struct {
	// Workers bounds the number of concurrently executing tasks.
	Workers int
	// MinIdleDelay is the delay before re-invoking a task after its first
	// idle report. Subsequent idle reports double the delay.
	MinIdleDelay time.Duration
	// MaxIdleDelay caps the idle backoff.
	MaxIdleDelay time.Duration
	// Logger receives reports of panicking tasks. Optional.
	Logger base.Logger
}

// EnsureDefaults fills in unset options with default values.
func (o *Options) EnsureDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.MinIdleDelay <= 0 {
		o.MinIdleDelay = 10 * time.Millisecond
	}
	if o.MaxIdleDelay <= 0 {
		o.MaxIdleDelay = 5 * time.Second
	}
	o.Logger = base.LoggerOrDefault(o.Logger)
}

// Pool is a bounded worker pool driving registered tasks. A Pool is
// constructed once per process and injected into each table.
type Pool struct {
	opts Options

	mu struct {
		sync.Mutex
		// taskDone is signaled whenever a task invocation returns; Unregister
		// waits on it.
		taskDone *sync.Cond
		tasks    []*TaskHandle
		// next is the round-robin scan position into tasks.
		next   int
		closed bool
	}

	// wakeCh is poked (capacity 1) whenever a task may have become runnable.
	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// TaskHandle identifies one registered task. All fields beyond the task
// itself are protected by the pool mutex.
type TaskHandle struct {
	task      Task
	running   bool
	removed   bool
	idleDelay time.Duration
	nextRun   time.Time
}

// NewPool starts a pool with the given options.
func NewPool(opts Options) *Pool {
	opts.EnsureDefaults()
	p := &Pool{
		opts:   opts,
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	p.mu.taskDone = sync.NewCond(&p.mu.Mutex)
	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.worker()
	}
	return p
}

// Register adds a recurring task. The task starts being invoked immediately.
func (p *Pool) Register(task Task) *TaskHandle {
	h := &TaskHandle{task: task}
	p.mu.Lock()
	if p.mu.closed {
		p.mu.Unlock()
		panic(errors.AssertionFailedf("bgpool: Register on closed pool"))
	}
	p.mu.tasks = append(p.mu.tasks, h)
	p.mu.Unlock()
	p.wake()
	return h
}

// Unregister removes the task and blocks until any in-flight invocation of
// it has returned. After Unregister returns the task will never be invoked
// again, so the state it closes over may be torn down.
func (p *Pool) Unregister(h *TaskHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.removed {
		return
	}
	h.removed = true
	for i, t := range p.mu.tasks {
		if t == h {
			p.mu.tasks = append(p.mu.tasks[:i], p.mu.tasks[i+1:]...)
			break
		}
	}
	for h.running {
		p.mu.taskDone.Wait()
	}
}

// Close stops the workers and waits for them to exit. Any currently
// executing task runs to completion. Registered tasks are implicitly
// unregistered.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.mu.closed {
		p.mu.Unlock()
		return
	}
	p.mu.closed = true
	p.mu.tasks = nil
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if p.mu.closed {
			p.mu.Unlock()
			return
		}
		h, wait := p.pickLocked(time.Now())
		if h == nil {
			p.mu.Unlock()
			if wait <= 0 {
				// No registered tasks; sleep until poked.
				select {
				case <-p.wakeCh:
				case <-p.stopCh:
					return
				}
			} else {
				timer := time.NewTimer(wait)
				select {
				case <-p.wakeCh:
					timer.Stop()
				case <-timer.C:
				case <-p.stopCh:
					timer.Stop()
					return
				}
			}
			continue
		}
		h.running = true
		p.mu.Unlock()

		didWork := p.invoke(h.task)

		p.mu.Lock()
		h.running = false
		if didWork {
			h.idleDelay = 0
			h.nextRun = time.Time{}
		} else {
			if h.idleDelay == 0 {
				h.idleDelay = p.opts.MinIdleDelay
			} else if h.idleDelay < p.opts.MaxIdleDelay {
				h.idleDelay *= 2
				if h.idleDelay > p.opts.MaxIdleDelay {
					h.idleDelay = p.opts.MaxIdleDelay
				}
			}
			h.nextRun = time.Now().Add(h.idleDelay)
		}
		p.mu.taskDone.Broadcast()
		p.mu.Unlock()
		// Another task may be runnable on an idle worker.
		p.wake()
	}
}

// pickLocked scans the registered tasks round-robin and returns a runnable
// one, or (nil, wait) where wait is the delay until the soonest task becomes
// runnable (0 when no tasks are registered).
func (p *Pool) pickLocked(now time.Time) (*TaskHandle, time.Duration) {
	n := len(p.mu.tasks)
	if n == 0 {
		return nil, 0
	}
	var minWait time.Duration = -1
	for i := 0; i < n; i++ {
		h := p.mu.tasks[(p.mu.next+i)%n]
		if h.running {
			continue
		}
		if w := h.nextRun.Sub(now); w > 0 {
			if minWait < 0 || w < minWait {
				minWait = w
			}
			continue
		}
		p.mu.next = (p.mu.next + i + 1) % n
		return h, 0
	}
	if minWait < 0 {
		// All tasks are running; wait for a completion poke.
		minWait = p.opts.MaxIdleDelay
	}
	return nil, minWait
}

// invoke runs the task, converting a panic into an idle report. A panicking
// background task must not take down the process.
func (p *Pool) invoke(task Task) (didWork bool) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Logger.Errorf("bgpool: background task panic: %v\n%s", r, debug.Stack())
			didWork = false
		}
	}()
	return task()
}
