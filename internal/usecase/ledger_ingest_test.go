package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
	svccache "LedgerCast/internal/service/cache"
)

type fakePipeline struct {
	processed []*models.Transaction
	err       error
}

func (f *fakePipeline) Process(_ context.Context, t *models.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.processed = append(f.processed, t)
	return nil
}

func sampleTxn(id, orgID string, amount int64) models.Transaction {
	return models.Transaction{
		ID:     id,
		OrgID:  orgID,
		Date:   time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(amount),
		Vendor: "acme",
	}
}

func newIngestFixture(t *testing.T, pipeline *fakePipeline) (*LedgerIngestHandler, *svccache.ModelCache, *fakeMetrics) {
	t.Helper()
	cache := svccache.NewModelCache(time.Minute)
	metrics := newFakeMetrics()
	h := NewLedgerIngestHandler("ledger.transactions", pipeline, cache, metrics, testLogger(t))
	return h, cache, metrics
}

func TestLedgerIngestHandlesBatch(t *testing.T) {
	pipeline := &fakePipeline{}
	h, cache, _ := newIngestFixture(t, pipeline)
	assert.Equal(t, "ledger.transactions", h.Topic())

	cache.Set("org-a", &models.TrainedForecastModel{OrgID: "org-a"})
	cache.Set("org-b", &models.TrainedForecastModel{OrgID: "org-b"})
	cache.Set("org-c", &models.TrainedForecastModel{OrgID: "org-c"})

	payload, err := json.Marshal([]models.Transaction{
		sampleTxn("t-1", "org-a", -500),
		sampleTxn("t-2", "org-b", 1200),
		sampleTxn("t-3", "org-a", -75),
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), payload))
	require.Len(t, pipeline.processed, 3)
	assert.Equal(t, "t-1", pipeline.processed[0].ID)

	// Touched organizations lose their cached model; untouched keep theirs.
	_, ok := cache.Get("org-a")
	assert.False(t, ok)
	_, ok = cache.Get("org-b")
	assert.False(t, ok)
	_, ok = cache.Get("org-c")
	assert.True(t, ok)
}

func TestLedgerIngestHandlesSingleObject(t *testing.T) {
	pipeline := &fakePipeline{}
	h, _, _ := newIngestFixture(t, pipeline)

	payload, err := json.Marshal(sampleTxn("t-9", "org-a", -500))
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), payload))
	require.Len(t, pipeline.processed, 1)
	assert.Equal(t, "t-9", pipeline.processed[0].ID)
	assert.Equal(t, "org-a", pipeline.processed[0].OrgID)
}

func TestLedgerIngestUndecodablePayload(t *testing.T) {
	pipeline := &fakePipeline{}
	h, _, metrics := newIngestFixture(t, pipeline)

	err := h.Handle(context.Background(), []byte("not json"))
	assert.Error(t, err)
	assert.Empty(t, pipeline.processed)
	assert.Equal(t, 1, metrics.errorCount("ingest_decode"))
}

func TestLedgerIngestPipelineErrorPropagates(t *testing.T) {
	pipeline := &fakePipeline{err: errors.New("buffer full")}
	h, cache, _ := newIngestFixture(t, pipeline)

	cache.Set("org-a", &models.TrainedForecastModel{OrgID: "org-a"})

	payload, err := json.Marshal(sampleTxn("t-1", "org-a", -500))
	require.NoError(t, err)

	err = h.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t-1")

	// Nothing was stored, so the cached model stays valid.
	_, ok := cache.Get("org-a")
	assert.True(t, ok)
}
