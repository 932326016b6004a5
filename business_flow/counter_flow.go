package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/models"
	"github.com/amirphl/tally/repository"
	"github.com/amirphl/tally/utils"
)

// CounterFlow reads and increments the persisted counter
// Public flow, no authentication required
type CounterFlow interface {
	// GetOrCreate returns the counter, creating it at zero on first use.
	GetOrCreate(ctx context.Context) (*dto.CounterDTO, error)
	// Increment adds one to the counter and returns the new value.
	Increment(ctx context.Context) (*dto.CounterDTO, error)
}

type CounterFlowImpl struct {
	repo  repository.CounterRepository
	cache CounterCache
}

func NewCounterFlow(repo repository.CounterRepository, cache CounterCache) CounterFlow {
	if cache == nil {
		cache = NoopCounterCache{}
	}
	return &CounterFlowImpl{repo: repo, cache: cache}
}

func (f *CounterFlowImpl) GetOrCreate(ctx context.Context) (*dto.CounterDTO, error) {
	cached, err := f.cache.Get(ctx)
	switch {
	case err != nil:
		counterCacheRequestsTotal.WithLabelValues("error").Inc()
		logCacheFailure(ctx, "counter_cache_get_failed", err)
	case cached != nil:
		counterCacheRequestsTotal.WithLabelValues("hit").Inc()
		counterValue.Set(float64(cached.Count))
		return cached, nil
	default:
		counterCacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	row, err := f.repo.GetOrCreate(ctx)
	if err != nil {
		counterStorageErrorsTotal.WithLabelValues("get_or_create").Inc()
		return nil, newStorageError("Failed to load counter", err)
	}

	out := ToCounterDTO(*row)
	if err := f.cache.Set(ctx, out); err != nil {
		logCacheFailure(ctx, "counter_cache_set_failed", err)
	}
	counterValue.Set(float64(out.Count))

	return out, nil
}

func (f *CounterFlowImpl) Increment(ctx context.Context) (*dto.CounterDTO, error) {
	row, err := f.repo.Increment(ctx)
	if err != nil {
		counterStorageErrorsTotal.WithLabelValues("increment").Inc()
		return nil, newStorageError("Failed to increment counter", err)
	}

	out := ToCounterDTO(*row)

	// Write through; Set never lowers a cached count, so a reader that loaded
	// the previous value before this commit cannot overwrite it.
	if err := f.cache.Set(ctx, out); err != nil {
		logCacheFailure(ctx, "counter_cache_set_failed", err)
		if err := f.cache.Invalidate(ctx); err != nil {
			logCacheFailure(ctx, "counter_cache_invalidate_failed", err)
		}
	}
	counterIncrementsTotal.Inc()
	counterValue.Set(float64(out.Count))

	return out, nil
}

// ToCounterDTO converts a counter model to its transport form
func ToCounterDTO(counter models.Counter) *dto.CounterDTO {
	return &dto.CounterDTO{
		ID:        counter.ID,
		Count:     counter.Count,
		UpdatedAt: counter.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func logCacheFailure(ctx context.Context, event string, err error) {
	log.Printf(`{"time":"%s","level":"warn","event":"%s","request_id":"%s","error":%q}`,
		utils.UTCNowRFC3339(), event, utils.RequestIDFrom(ctx), err.Error())
}
