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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueAndReceive(t *testing.T) {
	q := NewQueue(10)

	require.NoError(t, q.Enqueue(&Record{EntityName: "Product", EntityID: "1"}))
	require.NoError(t, q.Enqueue(&Record{EntityName: "Product", EntityID: "2"}))

	assert.Equal(t, 2, q.Depth())
	assert.Equal(t, int64(2), q.Enqueued())
	assert.Equal(t, 10, q.Capacity())

	first := <-q.Records()
	assert.Equal(t, "1", first.EntityID)
	second := <-q.Records()
	assert.Equal(t, "2", second.EntityID)
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_BlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(&Record{EntityID: "2"})
	}()

	// The producer must be blocked while the queue is at capacity.
	select {
	case <-unblocked:
		t.Fatal("enqueue returned while queue was full")
	case <-time.After(100 * time.Millisecond):
	}

	// Consuming one record frees space and unblocks the producer.
	<-q.Records()

	select {
	case err := <-unblocked:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue still blocked after space was freed")
	}
	assert.Equal(t, 1, q.Depth())
}

func TestQueue_CompleteRejectsNewRecords(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))

	q.Complete()
	// Complete is idempotent.
	q.Complete()

	err := q.Enqueue(&Record{EntityID: "2"})
	assert.ErrorIs(t, err, ErrQueueCompleted)

	// Buffered records stay readable for the drain.
	assert.Equal(t, 1, q.Depth())
	record := <-q.Records()
	assert.Equal(t, "1", record.EntityID)

	select {
	case <-q.Done():
	default:
		t.Fatal("done channel not closed after Complete")
	}
}

func TestQueue_CompleteUnblocksStuckProducer(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(&Record{EntityID: "2"})
	}()

	time.Sleep(50 * time.Millisecond)
	q.Complete()

	select {
	case err := <-unblocked:
		assert.ErrorIs(t, err, ErrQueueCompleted)
	case <-time.After(time.Second):
		t.Fatal("blocked producer not released by Complete")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue(1000)

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = q.Enqueue(&Record{EntityName: "Product"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), q.Enqueued())
	assert.Equal(t, 1000, q.Depth())
}
