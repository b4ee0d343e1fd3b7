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
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store Store, cfg Config) *Service {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 20 * time.Millisecond
	}
	cfg.Enabled = true
	return NewService(store, nil, cfg, zap.NewNop())
}

func TestService_EndToEnd(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, Config{})
	svc.Start()

	ctx := WithActor(context.Background(), Actor{ID: "u-1", Name: "Alice"})
	svc.Capture(ctx, []EntityChange{{
		EntityName: "Product",
		PrimaryKey: []string{"42"},
		State:      StateAdded,
		Fields:     []FieldValue{{Name: "sku", Current: "SKU-42"}},
	}})

	// The time trigger persists the record without reaching the batch size.
	assert.Eventually(t, func() bool {
		return store.RecordCount() == 1
	}, time.Second, 10*time.Millisecond)

	records := store.Records()
	assert.Equal(t, ActionCreate, records[0].Action)
	assert.Equal(t, "u-1", records[0].ActorID)

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_RecordDomainAction(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, Config{})
	svc.Start()

	ctx := WithActor(context.Background(), Actor{ID: "u-1"})
	svc.Record(ctx, ActionGrantPermission, "Permission", "7", map[string]interface{}{
		"resource": "products",
		"action":   "write",
	})

	assert.Eventually(t, func() bool {
		return store.RecordCount() == 1
	}, time.Second, 10*time.Millisecond)

	record := store.Records()[0]
	assert.Equal(t, ActionGrantPermission, record.Action)
	assert.Equal(t, "Permission", record.EntityName)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(record.NewValues), &values))
	assert.Equal(t, "products", values["resource"])

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_ShutdownDrainsPendingRecords(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, Config{
		BatchSize:     100,
		FlushInterval: time.Hour, // flushing happens only through shutdown
		ShutdownGrace: time.Second,
	})
	svc.Start()

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		svc.Capture(ctx, []EntityChange{{
			EntityName: "Product",
			PrimaryKey: []string{strconv.Itoa(i)},
			State:      StateAdded,
		}})
	}

	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 30, store.RecordCount())
}

func TestService_CaptureAfterShutdownIsNoOp(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, Config{})
	svc.Start()
	require.NoError(t, svc.Shutdown(context.Background()))

	svc.Capture(context.Background(), []EntityChange{{
		EntityName: "Product",
		PrimaryKey: []string{"1"},
		State:      StateAdded,
	}})
	svc.Record(context.Background(), ActionCreate, "Product", "1", nil)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.RecordCount())

	// Repeated shutdown is harmless.
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_DisabledIsNoOp(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, Config{Enabled: false}, zap.NewNop())
	svc.Start()

	svc.Capture(context.Background(), []EntityChange{{
		EntityName: "Product",
		PrimaryKey: []string{"1"},
		State:      StateAdded,
	}})

	assert.False(t, svc.Enabled())
	assert.Equal(t, 0, svc.QueueDepth())
	assert.Equal(t, 0, store.RecordCount())
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_QueriesDelegateToStore(t *testing.T) {
	store := newMockStore()
	store.batches = [][]*Record{{
		{EntityName: "Product", EntityID: "42", ActorID: "u-1"},
		{EntityName: "Product", EntityID: "43", ActorID: "u-2"},
	}}

	svc := newTestService(store, Config{})

	byEntity, err := svc.GetByEntity(context.Background(), "Product", "42")
	require.NoError(t, err)
	assert.Len(t, byEntity, 1)

	byActor, err := svc.GetByActor(context.Background(), "u-2", 10)
	require.NoError(t, err)
	assert.Len(t, byActor, 1)

	paged, total, err := svc.GetPaged(context.Background(), RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
	assert.Equal(t, int64(2), total)
}
