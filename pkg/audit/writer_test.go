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
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startWriter(q *Queue, store Store, mirror BatchMirror, cfg WriterConfig) chan struct{} {
	stopped := make(chan struct{})
	w := NewWriter(q, store, mirror, cfg, zap.NewNop())
	go func() {
		w.Run()
		close(stopped)
	}()
	return stopped
}

func TestWriter_SizeTrigger(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()

	stopped := startWriter(q, store, nil, WriterConfig{
		BatchSize:     3,
		FlushInterval: time.Hour, // only the size trigger may fire
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(&Record{EntityID: strconv.Itoa(i)}))
	}

	assert.Eventually(t, func() bool {
		return store.RecordCount() == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{3}, store.BatchSizes())

	q.Complete()
	<-stopped
	// No second flush happened for the same records.
	assert.Equal(t, 3, store.RecordCount())
}

func TestWriter_TimeTrigger(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()

	stopped := startWriter(q, store, nil, WriterConfig{
		BatchSize:     100, // never reached
		FlushInterval: 50 * time.Millisecond,
	})

	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))
	require.NoError(t, q.Enqueue(&Record{EntityID: "2"}))

	assert.Eventually(t, func() bool {
		return store.RecordCount() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{2}, store.BatchSizes())

	q.Complete()
	<-stopped
}

func TestWriter_FlushFailureDiscardsBatch(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()
	store.failNext = 1

	w := NewWriter(q, store, nil, WriterConfig{
		BatchSize:     2,
		FlushInterval: time.Hour,
		ShutdownGrace: time.Second,
	}, zap.NewNop())

	stopped := make(chan struct{})
	go func() {
		w.Run()
		close(stopped)
	}()

	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))
	require.NoError(t, q.Enqueue(&Record{EntityID: "2"}))

	// First batch is lost, later records flush normally.
	require.NoError(t, q.Enqueue(&Record{EntityID: "3"}))
	require.NoError(t, q.Enqueue(&Record{EntityID: "4"}))

	assert.Eventually(t, func() bool {
		return store.RecordCount() == 2
	}, time.Second, 10*time.Millisecond)

	records := store.Records()
	assert.Equal(t, "3", records[0].EntityID)
	assert.Equal(t, "4", records[1].EntityID)

	q.Complete()
	<-stopped
	assert.Equal(t, int64(2), w.Stats().LostRecords)
	assert.Equal(t, int64(2), w.Stats().FlushedRecords)
}

func TestWriter_ShutdownDrainsQueue(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()

	stopped := startWriter(q, store, nil, WriterConfig{
		BatchSize:     10,
		FlushInterval: time.Hour,
		ShutdownGrace: time.Second,
	})

	for i := 0; i < 25; i++ {
		require.NoError(t, q.Enqueue(&Record{EntityID: strconv.Itoa(i)}))
	}

	q.Complete()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop after queue completion")
	}

	// Every accepted record was flushed, nothing was dropped on the floor.
	assert.Equal(t, 25, store.RecordCount())
}

func TestWriter_SingleProducerOrderPreserved(t *testing.T) {
	q := NewQueue(1000)
	store := newMockStore()

	stopped := startWriter(q, store, nil, WriterConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
		ShutdownGrace: time.Second,
	})

	const n = 250
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(&Record{EntityID: strconv.Itoa(i)}))
	}

	q.Complete()
	<-stopped

	records := store.Records()
	require.Len(t, records, n)
	for i, record := range records {
		assert.Equal(t, strconv.Itoa(i), record.EntityID)
	}
}

// mockMirror is a test mirror destination.
type mockMirror struct {
	mu      sync.Mutex
	batches [][]*Record
	fail    bool
	closed  bool
}

func (m *mockMirror) WriteBatch(_ context.Context, records []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("simulated mirror failure")
	}
	batch := make([]*Record, len(records))
	copy(batch, records)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMirror) Name() string { return "mock" }

func (m *mockMirror) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, b := range m.batches {
		total += len(b)
	}
	return total
}

func TestWriter_MirrorReceivesFlushedBatches(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()
	mirror := &mockMirror{}

	stopped := startWriter(q, store, mirror, WriterConfig{
		BatchSize:     2,
		FlushInterval: time.Hour,
	})

	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))
	require.NoError(t, q.Enqueue(&Record{EntityID: "2"}))

	assert.Eventually(t, func() bool {
		return mirror.RecordCount() == 2
	}, time.Second, 10*time.Millisecond)

	q.Complete()
	<-stopped
}

func TestWriter_MirrorFailureDoesNotAffectStore(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()
	mirror := &mockMirror{fail: true}

	stopped := startWriter(q, store, mirror, WriterConfig{
		BatchSize:     2,
		FlushInterval: time.Hour,
		ShutdownGrace: time.Second,
	})

	require.NoError(t, q.Enqueue(&Record{EntityID: "1"}))
	require.NoError(t, q.Enqueue(&Record{EntityID: "2"}))

	assert.Eventually(t, func() bool {
		return store.RecordCount() == 2
	}, time.Second, 10*time.Millisecond)

	q.Complete()
	<-stopped
	assert.Equal(t, 2, store.RecordCount())
	assert.Equal(t, 0, mirror.RecordCount())
}

func TestWriter_StatsCountLoss(t *testing.T) {
	q := NewQueue(100)
	store := newMockStore()
	store.alwaysFail = true

	w := NewWriter(q, store, nil, WriterConfig{
		BatchSize:     5,
		FlushInterval: time.Hour,
		ShutdownGrace: time.Second,
	}, zap.NewNop())

	stopped := make(chan struct{})
	go func() {
		w.Run()
		close(stopped)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(&Record{EntityID: fmt.Sprint(i)}))
	}

	assert.Eventually(t, func() bool {
		return w.Stats().LostRecords == 5
	}, time.Second, 10*time.Millisecond)

	q.Complete()
	<-stopped

	stats := w.Stats()
	assert.Equal(t, int64(5), stats.LostRecords)
	assert.Equal(t, int64(0), stats.FlushedRecords)
	assert.Equal(t, int64(0), stats.FlushedBatches)
}
