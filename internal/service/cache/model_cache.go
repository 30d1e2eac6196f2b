package cache

import (
	"sync"
	"time"

	"LedgerCast/internal/domain/models"
)

type entry struct {
	m   *models.TrainedForecastModel
	exp time.Time
}

// ModelCache is an in-process, per-organization cache of trained forecast
// artifacts. It sits in front of the shared model store so repeated
// forecast calls skip the round trip; retraining invalidates the entry.
type ModelCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

func NewModelCache(ttl time.Duration) *ModelCache {
	return &ModelCache{ttl: ttl, m: make(map[string]entry)}
}

func (c *ModelCache) Get(orgID string) (*models.TrainedForecastModel, bool) {
	c.mu.RLock()
	e, ok := c.m[orgID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, orgID)
		c.mu.Unlock()
		return nil, false
	}
	return e.m, true
}

func (c *ModelCache) Set(orgID string, m *models.TrainedForecastModel) {
	var exp time.Time
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m[orgID] = entry{m: m, exp: exp}
	c.mu.Unlock()
}

func (c *ModelCache) Invalidate(orgID string) {
	c.mu.Lock()
	delete(c.m, orgID)
	c.mu.Unlock()
}
