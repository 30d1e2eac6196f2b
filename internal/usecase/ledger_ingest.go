package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	svccache "LedgerCast/internal/service/cache"
	applogger "LedgerCast/pkg/logger"
)

// Pipeline is the downstream of the ingest handler.
type Pipeline interface {
	Process(ctx context.Context, t *models.Transaction) error
}

// LedgerIngestHandler consumes ledger transaction messages from Kafka and
// feeds them through the batching pipeline. A message is either one
// transaction object or an array of them. New rows make cached forecast
// models stale, so each touched organization is invalidated.
type LedgerIngestHandler struct {
	topic    string
	pipeline Pipeline
	cache    *svccache.ModelCache
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

func NewLedgerIngestHandler(topic string, pipeline Pipeline, cache *svccache.ModelCache, metrics domrepo.Metrics, logger *applogger.Logger) *LedgerIngestHandler {
	return &LedgerIngestHandler{topic: topic, pipeline: pipeline, cache: cache, metrics: metrics, logger: logger}
}

func (h *LedgerIngestHandler) Topic() string { return h.topic }

// Handle decodes and pipelines one message. Decode failures are permanent
// (the consumer routes them to the DLQ); pipeline failures are returned so
// the consumer's retry/backoff applies.
func (h *LedgerIngestHandler) Handle(ctx context.Context, data []byte) error {
	txns, err := decodeTransactions(data)
	if err != nil {
		h.metrics.RecordError("ingest_decode")
		h.logger.Warn("undecodable ledger message", applogger.Error(err), applogger.Int("bytes", len(data)))
		return err
	}

	touched := make(map[string]struct{})
	for _, t := range txns {
		if err := h.pipeline.Process(ctx, t); err != nil {
			return fmt.Errorf("pipeline transaction %s: %w", t.ID, err)
		}
		touched[t.OrgID] = struct{}{}
	}
	for orgID := range touched {
		h.cache.Invalidate(orgID)
	}
	return nil
}

func decodeTransactions(data []byte) ([]*models.Transaction, error) {
	var many []*models.Transaction
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one models.Transaction
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode transaction payload: %w", err)
	}
	return []*models.Transaction{&one}, nil
}
