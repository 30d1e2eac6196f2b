package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	pkgcache "LedgerCast/pkg/cache"
)

const (
	modelKeyPrefix  = "forecast:model"
	trainLockPrefix = "forecast:train"
)

func modelKey(orgID string) string { return pkgcache.GenerateKey(modelKeyPrefix, orgID) }
func lockKey(orgID string) string  { return pkgcache.GenerateKey(trainLockPrefix, orgID) }

// CacheModelStore persists trained forecast artifacts in the shared cache
// backend. One artifact per organization, replaced wholesale on retrain;
// the training lock rides the same backend's TryLock.
type CacheModelStore struct {
	cache pkgcache.Service
}

func NewCacheModelStore(cache pkgcache.Service) *CacheModelStore {
	return &CacheModelStore{cache: cache}
}

var _ domrepo.ModelStore = (*CacheModelStore)(nil)

// Load returns nil without error when no artifact exists.
func (s *CacheModelStore) Load(ctx context.Context, orgID string) (*models.TrainedForecastModel, error) {
	var m models.TrainedForecastModel
	err := s.cache.Get(ctx, modelKey(orgID), &m)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &m, nil
}

func (s *CacheModelStore) Save(ctx context.Context, m *models.TrainedForecastModel) error {
	if m == nil || m.OrgID == "" {
		return fmt.Errorf("model missing org id")
	}
	if err := s.cache.Set(ctx, modelKey(m.OrgID), m, 0); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

func (s *CacheModelStore) Invalidate(ctx context.Context, orgID string) error {
	return s.cache.Delete(ctx, modelKey(orgID))
}

func (s *CacheModelStore) TryLock(ctx context.Context, orgID string, ttl time.Duration) (bool, error) {
	return s.cache.TryLock(ctx, lockKey(orgID), ttl)
}

func (s *CacheModelStore) Unlock(ctx context.Context, orgID string) error {
	return s.cache.Unlock(ctx, lockKey(orgID))
}
