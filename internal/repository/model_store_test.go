package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
	pkgcache "LedgerCast/pkg/cache"
)

func newModelStore(t *testing.T) *CacheModelStore {
	t.Helper()
	backend := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = backend.Close() })
	return NewCacheModelStore(backend)
}

func TestModelStoreLoadMiss(t *testing.T) {
	s := newModelStore(t)
	m, err := s.Load(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestModelStoreSaveLoadRoundtrip(t *testing.T) {
	s := newModelStore(t)

	in := &models.TrainedForecastModel{
		OrgID:         "org-1",
		SchemaVersion: models.ModelSchemaVersion,
		DataMonths:    24,
		AvgInflows:    50000,
		AvgOutflows:   40000,
		AvgNet:        10000,
		History: []models.MonthlyCashFlow{
			{Month: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), Inflows: 50000, Outflows: 40000, NetCashFlow: 10000},
		},
	}
	require.NoError(t, s.Save(context.Background(), in))

	out, err := s.Load(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.OrgID, out.OrgID)
	assert.Equal(t, in.SchemaVersion, out.SchemaVersion)
	assert.Equal(t, in.AvgNet, out.AvgNet)
	require.Len(t, out.History, 1)
	assert.True(t, in.History[0].Month.Equal(out.History[0].Month))

	// Organizations do not see each other's artifacts.
	other, err := s.Load(context.Background(), "org-2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestModelStoreSaveRejectsAnonymousModel(t *testing.T) {
	s := newModelStore(t)
	assert.Error(t, s.Save(context.Background(), nil))
	assert.Error(t, s.Save(context.Background(), &models.TrainedForecastModel{}))
}

func TestModelStoreReplaceAndInvalidate(t *testing.T) {
	s := newModelStore(t)

	require.NoError(t, s.Save(context.Background(), &models.TrainedForecastModel{OrgID: "org-1", DataMonths: 12}))
	require.NoError(t, s.Save(context.Background(), &models.TrainedForecastModel{OrgID: "org-1", DataMonths: 24}))

	m, err := s.Load(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 24, m.DataMonths)

	require.NoError(t, s.Invalidate(context.Background(), "org-1"))
	m, err = s.Load(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestModelStoreTrainLockExcludes(t *testing.T) {
	s := newModelStore(t)

	locked, err := s.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	again, err := s.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	// The lock is per organization.
	other, err := s.TryLock(context.Background(), "org-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, s.Unlock(context.Background(), "org-1"))
	relocked, err := s.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, relocked)
}

func TestModelStoreLockDoesNotShadowArtifact(t *testing.T) {
	s := newModelStore(t)

	locked, err := s.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, s.Save(context.Background(), &models.TrainedForecastModel{OrgID: "org-1", DataMonths: 6}))
	m, err := s.Load(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 6, m.DataMonths)
}
