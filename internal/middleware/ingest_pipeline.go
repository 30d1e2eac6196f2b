package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
)

// Sink receives validated transaction batches.
type Sink interface {
	StoreBatch(ctx context.Context, txns []*models.Transaction) error
}

// IngestPipeline sits between the Kafka ingest handler and the ledger
// store. It validates rows, accumulates them into batches, and flushes on
// size or interval; a failed flush is retried with backoff so a ledger
// blip does not drop rows.
type IngestPipeline struct {
	sink    Sink
	metrics domrepo.Metrics

	batchSize     int
	flushInterval time.Duration
	bufCh         chan *models.Transaction
	stopCh        chan struct{}
	started       bool
	mu            sync.Mutex
	wg            sync.WaitGroup
}

type PipelineOption func(*IngestPipeline)

// WithBatchSize sets how many rows accumulate before a flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval bounds how long a partial batch may wait.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithBufferSize sets the enqueue buffer between producers and the flusher.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Transaction, n)
		}
	}
}

func NewIngestPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		sink:          sink,
		metrics:       metrics,
		batchSize:     500,
		flushInterval: 2 * time.Second,
		bufCh:         make(chan *models.Transaction, 5000),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background flusher.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.flushLoop(ctx)
}

// Stop drains the buffer and waits for the final flush.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

// Process validates and enqueues one row. Backpressure is blocking: a full
// buffer slows the consumer down instead of dropping ledger rows.
func (p *IngestPipeline) Process(ctx context.Context, t *models.Transaction) error {
	if err := validateTransaction(t); err != nil {
		p.metrics.RecordError("ingest_validate")
		return err
	}
	select {
	case p.bufCh <- t:
		p.metrics.RecordLatency("ingest_buffer_depth", float64(len(p.bufCh)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return fmt.Errorf("ingest pipeline stopped")
	}
}

func (p *IngestPipeline) flushLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.Transaction, 0, p.batchSize)
	for {
		select {
		case <-p.stopCh:
			// drain whatever is still buffered
			for {
				select {
				case t := <-p.bufCh:
					batch = append(batch, t)
				default:
					p.flush(ctx, &batch)
					return
				}
			}
		case t := <-p.bufCh:
			batch = append(batch, t)
			if len(batch) >= p.batchSize {
				p.flush(ctx, &batch)
			}
		case <-ticker.C:
			p.flush(ctx, &batch)
		}
	}
}

// flush writes the accumulated batch with capped exponential backoff. The
// batch is only cleared after a successful write.
func (p *IngestPipeline) flush(ctx context.Context, batch *[]*models.Transaction) {
	if len(*batch) == 0 {
		return
	}
	start := time.Now()
	backoff := 50 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := p.sink.StoreBatch(ctx, *batch)
		if err == nil {
			break
		}
		p.metrics.RecordError("ingest_flush")
		if attempt >= 5 {
			p.metrics.RecordError("ingest_batch_drop")
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	p.metrics.RecordLatency("ingest_flush", time.Since(start).Seconds())
	*batch = (*batch)[:0]
}

func validateTransaction(t *models.Transaction) error {
	if t == nil {
		return fmt.Errorf("transaction nil")
	}
	if t.OrgID == "" {
		return fmt.Errorf("org_id empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date invalid")
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("amount zero")
	}
	return nil
}
