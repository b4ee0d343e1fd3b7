/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueCompleted is returned by Enqueue once the queue has been marked
// complete. No further records are accepted after that point.
var ErrQueueCompleted = errors.New("audit queue completed")

// Queue is the bounded buffer between the capture stage (many concurrent
// producers, one per in-flight write transaction) and the batch writer (a
// single consumer).
//
// When the queue is at capacity, producers block until the writer frees
// space. Durability is valued over request latency once the system is
// saturated, so records are never dropped or buffered without bound.
type Queue struct {
	records chan *Record
	done    chan struct{}

	completed atomic.Bool
	once      sync.Once

	enqueued atomic.Int64
}

// NewQueue creates a queue with the given fixed capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Queue{
		records: make(chan *Record, capacity),
		done:    make(chan struct{}),
	}
}

// Enqueue adds a record, blocking while the queue is full. It fails only
// after Complete has been called.
func (q *Queue) Enqueue(record *Record) error {
	if q.completed.Load() {
		return ErrQueueCompleted
	}

	select {
	case q.records <- record:
		q.enqueued.Add(1)
		return nil
	case <-q.done:
		return ErrQueueCompleted
	}
}

// Complete marks the queue terminal: pending and in-flight enqueues are
// refused and the consumer's drain ends after the last buffered record.
// Safe to call more than once.
func (q *Queue) Complete() {
	q.once.Do(func() {
		q.completed.Store(true)
		close(q.done)
	})
}

// Records is the consumer side of the queue. Exactly one goroutine (the
// batch writer) receives from it.
func (q *Queue) Records() <-chan *Record {
	return q.records
}

// Done is closed when the queue has been completed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Depth returns the number of buffered records.
func (q *Queue) Depth() int {
	return len(q.records)
}

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int {
	return cap(q.records)
}

// Enqueued returns the total number of records accepted so far.
func (q *Queue) Enqueued() int64 {
	return q.enqueued.Load()
}
