// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// queueCapacity is the number of tasks that can be enqueued before Enqueue blocks.
const queueCapacity = 64

// Queue is an in-order asynchronous command queue: tasks run one at a time, in the order
// they were enqueued, in the queue's goroutine.
type Queue struct {
	tasks   chan queuedTask
	pending sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool

	observe func(name string, elapsed time.Duration)
}

type queuedTask struct {
	name string
	run  func() error
}

// NewQueue creates a queue and starts its goroutine.
func NewQueue() *Queue {
	q := &Queue{tasks: make(chan queuedTask, queueCapacity)}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	for task := range q.tasks {
		start := time.Now()
		err := task.run()
		elapsed := time.Since(start)
		q.mu.Lock()
		if err != nil && q.err == nil {
			q.err = err
		}
		observe := q.observe
		q.mu.Unlock()
		if observe != nil {
			observe(task.name, elapsed)
		}
		q.pending.Done()
	}
}

// SetObserver sets a function called with the duration of every task run after this call.
func (q *Queue) SetObserver(observe func(name string, elapsed time.Duration)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observe = observe
}

// Enqueue adds a task to the queue and returns immediately (unless the queue is full).
// Errors are reported by the next Finish.
func (q *Queue) Enqueue(name string, task func() error) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.Errorf("gpu queue: enqueuing %q on a closed queue", name)
	}
	q.pending.Add(1)
	q.mu.Unlock()
	q.tasks <- queuedTask{name: name, run: task}
	return nil
}

// Finish blocks until all enqueued tasks ran, and returns the first error since the last Finish.
func (q *Queue) Finish() error {
	q.pending.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

// Close finishes pending tasks and stops the queue's goroutine.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	err := q.Finish()
	close(q.tasks)
	return err
}
