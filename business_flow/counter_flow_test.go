package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/models"
	"github.com/amirphl/tally/repository"
	testingutil "github.com/amirphl/tally/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounterRepo is an in-memory CounterRepository that records calls
type fakeCounterRepo struct {
	mu         sync.Mutex
	counter    *models.Counter
	err        error
	reads      int
	increments int
}

func (r *fakeCounterRepo) Current(context.Context) (*models.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.counter == nil {
		return nil, nil
	}
	c := *r.counter
	return &c, nil
}

func (r *fakeCounterRepo) GetOrCreate(context.Context) (*models.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	if r.counter == nil {
		r.counter = &models.Counter{ID: 1, Name: models.DefaultCounterName, UpdatedAt: time.Now()}
	}
	c := *r.counter
	return &c, nil
}

func (r *fakeCounterRepo) Increment(ctx context.Context) (*models.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments++
	if r.err != nil {
		return nil, r.err
	}
	if r.counter == nil {
		r.counter = &models.Counter{ID: 1, Name: models.DefaultCounterName}
	}
	r.counter.Count++
	r.counter.UpdatedAt = time.Now()
	c := *r.counter
	return &c, nil
}

type failingCache struct{ err error }

func (c failingCache) Get(context.Context) (*dto.CounterDTO, error) { return nil, c.err }
func (c failingCache) Set(context.Context, *dto.CounterDTO) error { return c.err }
func (c failingCache) Invalidate(context.Context) error { return c.err }

func TestCounterFlowStorageErrors(t *testing.T) {
	repoErr := errors.New("connection refused")
	flow := NewCounterFlow(&fakeCounterRepo{err: repoErr}, nil)
	ctx := context.Background()

	t.Run("GetOrCreate", func(t *testing.T) {
		before := testutil.ToFloat64(counterStorageErrorsTotal.WithLabelValues("get_or_create"))

		out, err := flow.GetOrCreate(ctx)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, IsStorageError(err))
		assert.ErrorIs(t, err, repoErr)
		assert.Equal(t, CodeCounterStorageFailed, ErrorCode(err))

		assert.Equal(t, before+1, testutil.ToFloat64(counterStorageErrorsTotal.WithLabelValues("get_or_create")))
	})

	t.Run("Increment", func(t *testing.T) {
		before := testutil.ToFloat64(counterStorageErrorsTotal.WithLabelValues("increment"))

		out, err := flow.Increment(ctx)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, IsStorageError(err))
		assert.ErrorIs(t, err, repoErr)

		assert.Equal(t, before+1, testutil.ToFloat64(counterStorageErrorsTotal.WithLabelValues("increment")))
	})

	t.Run("OtherErrorsAreNotStorageErrors", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, IsStorageError(err))
		assert.Empty(t, ErrorCode(err))
	})
}

func TestCounterFlowWithMemoryCache(t *testing.T) {
	repo := &fakeCounterRepo{}
	flow := NewCounterFlow(repo, NewMemoryCounterCache(time.Minute, time.Minute))
	ctx := context.Background()

	hits := counterCacheRequestsTotal.WithLabelValues("hit")
	hitsBefore := testutil.ToFloat64(hits)

	first, err := flow.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Count)

	second, err := flow.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Count)
	assert.Equal(t, 1, repo.reads)
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(hits))

	incremented, err := flow.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), incremented.Count)

	// The increment wrote the new value through to the cache
	after, err := flow.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.Count)
	assert.Equal(t, 1, repo.reads)
	assert.Equal(t, float64(1), testutil.ToFloat64(counterValue))
}

// pausingReadRepo blocks GetOrCreate after the store read until released,
// so an increment can commit between a reader's load and its cache write.
type pausingReadRepo struct {
	*fakeCounterRepo
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingReadRepo) GetOrCreate(ctx context.Context) (*models.Counter, error) {
	c, err := r.fakeCounterRepo.GetOrCreate(ctx)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return c, err
}

func TestCounterFlowSlowReaderDoesNotRollBackCache(t *testing.T) {
	caches := map[string]CounterCache{
		"Memory": NewMemoryCounterCache(time.Minute, time.Minute),
	}
	if rc := testRedisClient(t); rc != nil {
		caches["Redis"] = NewRedisCounterCache(rc, "tally:test:"+t.Name(), time.Minute)
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Invalidate(ctx))

			repo := &pausingReadRepo{
				fakeCounterRepo: &fakeCounterRepo{},
				loaded:          make(chan struct{}),
				release:         make(chan struct{}),
			}
			flow := NewCounterFlow(repo, c)

			readerDone := make(chan *dto.CounterDTO, 1)
			go func() {
				out, err := flow.GetOrCreate(ctx)
				assert.NoError(t, err)
				readerDone <- out
			}()

			<-repo.loaded
			incremented, err := flow.Increment(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), incremented.Count)

			close(repo.release)
			stale := <-readerDone
			require.NotNil(t, stale)
			assert.Equal(t, int64(0), stale.Count)

			cached, err := c.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, cached)
			assert.Equal(t, int64(1), cached.Count)

			current, err := flow.GetOrCreate(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), current.Count)
		})
	}
}

func TestCounterFlowCacheFailureFallsBackToStore(t *testing.T) {
	repo := &fakeCounterRepo{}
	flow := NewCounterFlow(repo, failingCache{err: ErrCacheNotAvailable})
	ctx := context.Background()

	errorsBefore := testutil.ToFloat64(counterCacheRequestsTotal.WithLabelValues("error"))

	out, err := flow.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Count)

	out, err = flow.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Count)

	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(counterCacheRequestsTotal.WithLabelValues("error")))
}

func TestCounterFlowUnreachableRedis(t *testing.T) {
	rc := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rc.Close()

	repo := &fakeCounterRepo{}
	flow := NewCounterFlow(repo, NewRedisCounterCache(rc, "tally:test:counter", time.Minute))
	ctx := context.Background()

	out, err := flow.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Count)

	out, err = flow.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Count)
	assert.Equal(t, 1, repo.reads)
}

func TestCounterFlowWithStore(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := NewCounterFlow(repository.NewCounterRepository(testDB.DB), NewMemoryCounterCache(time.Minute, time.Minute))
		ctx := testingutil.CreateTestContext()

		t.Run("SeededCounterThenIncrements", func(t *testing.T) {
			_, err := fixtures.SeedCounter(42)
			require.NoError(t, err)

			out, err := flow.GetOrCreate(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(42), out.Count)
			assert.NotEmpty(t, out.UpdatedAt)

			incrementsBefore := testutil.ToFloat64(counterIncrementsTotal)
			for i := 0; i < 3; i++ {
				_, err := flow.Increment(ctx)
				require.NoError(t, err)
			}
			assert.Equal(t, incrementsBefore+3, testutil.ToFloat64(counterIncrementsTotal))

			out, err = flow.GetOrCreate(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(45), out.Count)
			assert.Equal(t, float64(45), testutil.ToFloat64(counterValue))
		})

		t.Run("ClosedStoreSurfacesStorageError", func(t *testing.T) {
			require.NoError(t, testDB.Close())

			_, err := flow.Increment(ctx)
			require.Error(t, err)
			assert.True(t, IsStorageError(err))
		})

		return nil
	})
	require.NoError(t, err)
}
