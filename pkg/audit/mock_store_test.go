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
	"sync"
	"time"
)

// mockStore is a test store that records batches and can simulate failures.
type mockStore struct {
	mu      sync.Mutex
	batches [][]*Record

	alwaysFail bool
	failNext   int // fail this many inserts, then succeed

	deleteBatches []int64 // scripted DeleteBefore results
	deleteErr     error
	deleteCalls   int
	deleteCutoffs []time.Time
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (s *mockStore) InsertBatch(_ context.Context, records []*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alwaysFail {
		return errors.New("simulated insert failure")
	}
	if s.failNext > 0 {
		s.failNext--
		return errors.New("simulated insert failure")
	}

	batch := make([]*Record, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *mockStore) DeleteBefore(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCalls++
	s.deleteCutoffs = append(s.deleteCutoffs, cutoff)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if len(s.deleteBatches) == 0 {
		return 0, nil
	}
	deleted := s.deleteBatches[0]
	s.deleteBatches = s.deleteBatches[1:]
	return deleted, nil
}

func (s *mockStore) GetByEntity(_ context.Context, entityName, entityID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, batch := range s.batches {
		for _, r := range batch {
			if r.EntityName == entityName && r.EntityID == entityID {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (s *mockStore) GetByActor(_ context.Context, actorID string, _ int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, batch := range s.batches {
		for _, r := range batch {
			if r.ActorID == actorID {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (s *mockStore) GetPaged(_ context.Context, _ RecordFilter) ([]Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, batch := range s.batches {
		for _, r := range batch {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (s *mockStore) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *mockStore) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, batch := range s.batches {
		total += len(batch)
	}
	return total
}

func (s *mockStore) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Record
	for _, batch := range s.batches {
		out = append(out, batch...)
	}
	return out
}

func (s *mockStore) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sizes := make([]int, 0, len(s.batches))
	for _, batch := range s.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}
