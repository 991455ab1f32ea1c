package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	tests.StateStoreContractTest(t, memory.NewStore())
}

func TestStore_ConcurrentSaves(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%02d", i)
			_ = store.Save(ctx, id, tests.SampleState(id))
		}(i)
	}
	wg.Wait()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 50)
	assert.Equal(t, "run-00", ids[0])
}

func TestSink_RecordsCopies(t *testing.T) {
	sink := memory.NewSink()
	data := domain.Data{"basic": {"mileage": "1"}}

	require.NoError(t, sink.Publish(context.Background(), domain.Completion{
		RunID:       "r1",
		Flow:        "diy",
		Data:        data,
		CompletedAt: time.Now(),
	}))
	data["basic"]["mileage"] = "2"

	got := sink.Completions()
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Data["basic"]["mileage"])
}
