package encounter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, ttl time.Duration) *MemoryStore {
	t.Helper()
	return NewMemoryStore(ttl, zap.NewNop())
}

func storedSession() *Session {
	return NewSession("char-1", "cinder_drake", 100, 500, time.Minute)
}

func TestMemoryStore_CreateAndFind(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	sess := storedSession()

	require.NoError(t, store.Create(ctx, sess))

	got, err := store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Boss.CurrentHP, got.Boss.CurrentHP)

	// The returned copy is the caller's to mutate.
	got.Boss.ApplyDamage(100)
	again, err := store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, again.Boss.CurrentHP)
}

func TestMemoryStore_CreateRejectsDuplicate(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	sess := storedSession()

	require.NoError(t, store.Create(ctx, sess))
	assert.ErrorIs(t, store.Create(ctx, sess), ErrSessionExists)
}

func TestMemoryStore_FindMissing(t *testing.T) {
	store := newTestStore(t, time.Minute)
	_, err := store.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_UpdateChecksTurnCounter(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	sess := storedSession()
	require.NoError(t, store.Create(ctx, sess))

	turn1 := sess.Clone()
	turn1.Turn = 1
	require.NoError(t, store.Update(ctx, turn1, 0))

	// A second writer that also loaded turn 0 must be rejected.
	stale := sess.Clone()
	stale.Turn = 1
	assert.ErrorIs(t, store.Update(ctx, stale, 0), ErrStaleSession)

	got, err := store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Turn, "exactly one turn's worth of state change")
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	store := newTestStore(t, time.Minute)
	sess := storedSession()
	assert.ErrorIs(t, store.Update(context.Background(), sess, 0), ErrSessionNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	sess := storedSession()
	require.NoError(t, store.Create(ctx, sess))

	// A stale turn counter must not close the session.
	assert.ErrorIs(t, store.Delete(ctx, sess.ID, 3), ErrStaleSession)

	require.NoError(t, store.Delete(ctx, sess.ID, sess.Turn))
	_, err := store.FindByID(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, store.Delete(ctx, sess.ID, sess.Turn), ErrSessionNotFound)
}

func TestMemoryStore_ExpiredSessionIsReclaimed(t *testing.T) {
	store := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	sess := storedSession()
	require.NoError(t, store.Create(ctx, sess))

	now := time.Now()
	store.now = func() time.Time { return now.Add(31 * time.Minute) }

	_, err := store.FindByID(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_UpdateRefreshesExpiry(t *testing.T) {
	store := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	sess := storedSession()
	require.NoError(t, store.Create(ctx, sess))

	now := time.Now()
	store.now = func() time.Time { return now.Add(20 * time.Minute) }
	turn1 := sess.Clone()
	turn1.Turn = 1
	require.NoError(t, store.Update(ctx, turn1, 0))

	// 45 minutes after creation but only 25 after the last turn.
	store.now = func() time.Time { return now.Add(45 * time.Minute) }
	_, err := store.FindByID(ctx, sess.ID)
	assert.NoError(t, err, "activity keeps the session alive")
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(ctx, storedSession()))
	}
	fresh := storedSession()

	now := time.Now()
	store.now = func() time.Time { return now.Add(31 * time.Minute) }
	require.NoError(t, store.Create(ctx, fresh))

	assert.Equal(t, 3, store.Sweep())
	assert.Equal(t, 1, store.Len())
	_, err := store.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_StartSweeperReclaimsUntilCancelled(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, storedSession()))

	now := time.Now()
	store.now = func() time.Time { return now.Add(2 * time.Minute) }

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		store.StartSweeper(sweepCtx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Len() == 0 },
		time.Second, 5*time.Millisecond, "sweeper reclaims the expired session")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestMemoryStore_ConcurrentTurnsCommitExactlyOnce(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()
	sess := storedSession()
	require.NoError(t, store.Create(ctx, sess))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loaded, err := store.FindByID(ctx, sess.ID)
			if err != nil {
				errs[i] = err
				return
			}
			loaded.Turn++
			loaded.TotalDamageDealt += 10
			errs[i] = store.Update(ctx, loaded, loaded.Turn-1)
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
		} else {
			assert.ErrorIs(t, err, ErrStaleSession)
		}
	}
	assert.GreaterOrEqual(t, committed, 1)

	got, err := store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, committed, got.Turn, "one committed turn per accepted write")
	assert.Equal(t, committed*10, got.TotalDamageDealt)
}
