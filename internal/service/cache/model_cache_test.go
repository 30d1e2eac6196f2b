package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
)

func TestModelCacheGetSet(t *testing.T) {
	c := NewModelCache(time.Minute)

	_, ok := c.Get("org-1")
	assert.False(t, ok)

	m := &models.TrainedForecastModel{OrgID: "org-1", DataMonths: 24}
	c.Set("org-1", m)

	got, ok := c.Get("org-1")
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = c.Get("org-2")
	assert.False(t, ok)
}

func TestModelCacheInvalidate(t *testing.T) {
	c := NewModelCache(time.Minute)
	c.Set("org-1", &models.TrainedForecastModel{OrgID: "org-1"})
	c.Set("org-2", &models.TrainedForecastModel{OrgID: "org-2"})

	c.Invalidate("org-1")

	_, ok := c.Get("org-1")
	assert.False(t, ok)
	_, ok = c.Get("org-2")
	assert.True(t, ok)
}

func TestModelCacheTTLExpiry(t *testing.T) {
	c := NewModelCache(20 * time.Millisecond)
	c.Set("org-1", &models.TrainedForecastModel{OrgID: "org-1"})

	_, ok := c.Get("org-1")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("org-1")
	assert.False(t, ok)
}

func TestModelCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewModelCache(0)
	c.Set("org-1", &models.TrainedForecastModel{OrgID: "org-1"})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("org-1")
	assert.True(t, ok)
}
