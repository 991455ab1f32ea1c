package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, runID string) (*domain.State, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, runID)
}

func (s SlowStore) Save(ctx context.Context, runID string, state *domain.State) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, runID, state)
}

func TestManager_UpdateSerializesWriters(t *testing.T) {
	manager := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()
	id := "counter"

	require.NoError(t, manager.Save(ctx, id, domain.NewState(id, "basic", domain.Data{"basic": {"n": 0}})))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(_ context.Context, s *domain.State) (*domain.State, error) {
				s.Data["basic"]["n"] = s.Data["basic"]["n"].(int) + 1
				return s, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 20, state.Data["basic"]["n"], "no lost updates")
}

func TestManager_LoadOrStartIsAtomic(t *testing.T) {
	manager := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()

	var starts int
	var mu sync.Mutex
	start := func(context.Context) (*domain.State, error) {
		mu.Lock()
		starts++
		mu.Unlock()
		return domain.NewState("atomic", "basic", nil), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrStart(ctx, "atomic", start)
			assert.NoError(t, err)
			assert.Equal(t, "basic", state.CurrentStepID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, starts)
}

func TestManager_UpdateMissingRun(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	_, err := manager.Update(context.Background(), "ghost", func(_ context.Context, s *domain.State) (*domain.State, error) {
		return s, nil
	})
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestManager_UpdateErrorSkipsSave(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, "r", domain.NewState("r", "basic", nil)))

	boom := errors.New("boom")
	_, err := manager.Update(ctx, "r", func(_ context.Context, s *domain.State) (*domain.State, error) {
		s.CurrentStepID = "changed"
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := store.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "basic", state.CurrentStepID)
}

type recordingLocker struct {
	mu     sync.Mutex
	locked []string
	fail   bool
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail {
		return nil, errors.New("unavailable")
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "r1", domain.NewState("r1", "basic", nil)))
	require.NoError(t, manager.Delete(ctx, "r1"))
	assert.Equal(t, []string{"r1", "r1"}, locker.locked)

	locker.fail = true
	err := manager.Save(ctx, "r2", domain.NewState("r2", "basic", nil))
	assert.Error(t, err)
}
