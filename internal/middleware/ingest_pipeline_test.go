package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]*models.Transaction
	fails   int // fail this many StoreBatch calls before succeeding
	calls   int
}

func (s *recordingSink) StoreBatch(_ context.Context, txns []*models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.fails {
		return errors.New("ledger unavailable")
	}
	batch := make([]*models.Transaction, len(txns))
	copy(batch, txns)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSink) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordAnomaly(string, string, string) {}
func (m *countingMetrics) RecordTraining(string, bool)          {}
func (m *countingMetrics) RecordLatency(string, float64)        {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func txn(id string) *models.Transaction {
	return &models.Transaction{
		ID:     id,
		OrgID:  "org-1",
		Date:   time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(-500),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestProcessRejectsInvalidRows(t *testing.T) {
	metrics := newCountingMetrics()
	p := NewIngestPipeline(&recordingSink{}, metrics)

	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.Transaction{
		Date: time.Now(), Amount: decimal.NewFromInt(1),
	}))
	assert.Error(t, p.Process(context.Background(), &models.Transaction{
		OrgID: "org-1", Amount: decimal.NewFromInt(1),
	}))
	assert.Error(t, p.Process(context.Background(), &models.Transaction{
		OrgID: "org-1", Date: time.Now(),
	}))
	assert.Equal(t, 4, metrics.errorCount("ingest_validate"))

	assert.NoError(t, p.Process(context.Background(), txn("t-1")))
	assert.Equal(t, 4, metrics.errorCount("ingest_validate"))
}

func TestFlushOnBatchSize(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(sink, newCountingMetrics(),
		WithBatchSize(2), WithFlushInterval(time.Hour))
	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Process(context.Background(), txn("t")))
	}

	waitFor(t, 2*time.Second, func() bool { return sink.rowCount() == 4 })
	assert.Equal(t, 2, sink.batchCount())
}

func TestStopDrainsBuffer(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(sink, newCountingMetrics(),
		WithBatchSize(100), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Process(context.Background(), txn("t")))
	}
	p.Stop()

	assert.Equal(t, 3, sink.rowCount())
}

func TestFlushOnInterval(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(sink, newCountingMetrics(),
		WithBatchSize(100), WithFlushInterval(30*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Process(context.Background(), txn("t")))
	waitFor(t, 2*time.Second, func() bool { return sink.rowCount() == 1 })
}

func TestFlushRetriesTransientFailure(t *testing.T) {
	sink := &recordingSink{fails: 2}
	metrics := newCountingMetrics()
	p := NewIngestPipeline(sink, metrics,
		WithBatchSize(100), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	require.NoError(t, p.Process(context.Background(), txn("t")))
	p.Stop()

	assert.Equal(t, 1, sink.rowCount())
	assert.Equal(t, 2, metrics.errorCount("ingest_flush"))
	assert.Equal(t, 0, metrics.errorCount("ingest_batch_drop"))
}

func TestFlushDropsBatchAfterRetryBudget(t *testing.T) {
	sink := &recordingSink{fails: 1000}
	metrics := newCountingMetrics()
	p := NewIngestPipeline(sink, metrics,
		WithBatchSize(100), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	require.NoError(t, p.Process(context.Background(), txn("t")))
	p.Stop()

	assert.Equal(t, 0, sink.rowCount())
	assert.Equal(t, 5, metrics.errorCount("ingest_flush"))
	assert.Equal(t, 1, metrics.errorCount("ingest_batch_drop"))
}

func TestProcessBackpressureHonorsContext(t *testing.T) {
	// Flusher never started, one-slot buffer: the second row has nowhere to
	// go, so a cancelled context must unblock the producer.
	p := NewIngestPipeline(&recordingSink{}, newCountingMetrics(), WithBufferSize(1))
	require.NoError(t, p.Process(context.Background(), txn("t-1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Process(ctx, txn("t-2")), context.Canceled)
}
