// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bgpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPool(workers int) *Pool {
	return NewPool(Options{
		Workers:      workers,
		MinIdleDelay: time.Millisecond,
		MaxIdleDelay: 20 * time.Millisecond,
	})
}

func TestTaskRunsRepeatedly(t *testing.T) {
	p := testPool(1)
	defer p.Close()

	var n atomic.Int32
	done := make(chan struct{})
	p.Register(func() bool {
		if n.Add(1) == 10 {
			close(done)
		}
		return true
	})
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("task was not re-invoked promptly after reporting work")
	}
}

func TestIdleBackoff(t *testing.T) {
	p := testPool(1)
	defer p.Close()

	var invocations atomic.Int32
	h := p.Register(func() bool {
		invocations.Add(1)
		return false
	})
	time.Sleep(100 * time.Millisecond)
	p.Unregister(h)

	// With a 1ms..20ms doubling backoff an always-idle task is invoked a
	// handful of times in 100ms; without backoff it would be thousands.
	n := invocations.Load()
	require.Greater(t, n, int32(1))
	require.Less(t, n, int32(50))
}

func TestUnregisterWaitsForInflight(t *testing.T) {
	p := testPool(2)
	defer p.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var exited atomic.Bool
	h := p.Register(func() bool {
		entered <- struct{}{}
		<-release
		exited.Store(true)
		return false
	})

	<-entered
	unregistered := make(chan struct{})
	go func() {
		p.Unregister(h)
		close(unregistered)
	}()

	select {
	case <-unregistered:
		t.Fatal("Unregister returned while the task was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-unregistered:
	case <-time.After(10 * time.Second):
		t.Fatal("Unregister did not return after the task exited")
	}
	require.True(t, exited.Load())

	// The task must never run again.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-entered:
		t.Fatal("task ran after Unregister returned")
	default:
	}
}

func TestConcurrencyBound(t *testing.T) {
	const workers = 3
	p := testPool(workers)
	defer p.Close()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	wg.Add(8)
	var once [8]sync.Once
	for i := 0; i < 8; i++ {
		i := i
		p.Register(func() bool {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			once[i].Do(wg.Done)
			return true
		})
	}
	wg.Wait()
	require.LessOrEqual(t, maxRunning.Load(), int32(workers))
}

func TestTaskPanicIsCaptured(t *testing.T) {
	p := testPool(1)
	defer p.Close()

	var after atomic.Bool
	ran := make(chan struct{})
	var once sync.Once
	p.Register(func() bool {
		if !after.Swap(true) {
			panic("boom")
		}
		once.Do(func() { close(ran) })
		return false
	})
	// The pool survives the panic and keeps invoking the task.
	select {
	case <-ran:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not recover from a panicking task")
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := testPool(2)
	p.Register(func() bool { return false })
	p.Close()
	p.Close()
}
