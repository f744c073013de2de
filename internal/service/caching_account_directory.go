package service

import (
	"context"
	"fmt"

	"github.com/agendopro/webhook/internal/models"
	"github.com/agendopro/webhook/internal/observability"
	"github.com/agendopro/webhook/pkg/cache"
)

const cacheNameAccountByProfessionalID = "account_by_professional_id"

// AccountDirectory resolves accounts by external professional id.
type AccountDirectory interface {
	FindByProfessionalID(ctx context.Context, professionalID string) (*models.Account, error)
}

// cachingAccountDirectory wraps an AccountDirectory with an LRU of successful lookups.
// Misses are not cached, so a newly linked professional is picked up on the next event.
type cachingAccountDirectory struct {
	inner   AccountDirectory
	cache   *cache.LoaderCache[string, *models.Account]
	metrics observability.CacheMetrics
}

// NewCachingAccountDirectory returns an AccountDirectory that caches FindByProfessionalID.
// metrics may be nil (no cache metrics recorded).
func NewCachingAccountDirectory(
	inner AccountDirectory,
	accounts *cache.LoaderCache[string, *models.Account],
	metrics observability.CacheMetrics,
) AccountDirectory {
	return &cachingAccountDirectory{inner: inner, cache: accounts, metrics: metrics}
}

func (d *cachingAccountDirectory) FindByProfessionalID(ctx context.Context, professionalID string) (*models.Account, error) {
	account, hit, err := d.cache.GetWithStats(ctx, professionalID, d.inner.FindByProfessionalID)
	if err != nil {
		return nil, fmt.Errorf("find account by professional id: %w", err)
	}

	if d.metrics != nil {
		if hit {
			d.metrics.RecordHit(ctx, cacheNameAccountByProfessionalID)
		} else {
			d.metrics.RecordMiss(ctx, cacheNameAccountByProfessionalID)
		}
	}

	return account, nil
}
