package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	pkgch "LedgerCast/pkg/clickhouse"
)

const (
	baselineTable = "ledgercast.anomaly_baselines"
	eventTable    = "ledgercast.anomaly_events"
)

var anomalySchema = []string{
	`CREATE DATABASE IF NOT EXISTS ledgercast`,
	`CREATE TABLE IF NOT EXISTS ` + baselineTable + ` (
        org_id          String,
        metric          String,
        mean            Float64,
        std_dev         Float64,
        median          Float64,
        q1              Float64,
        q3              Float64,
        iqr             Float64,
        upper_threshold Float64,
        lower_threshold Float64,
        sample_size     UInt32,
        computed_at     DateTime('UTC') DEFAULT now()
    ) ENGINE = ReplacingMergeTree(computed_at)
    ORDER BY (org_id, metric)`,
	`CREATE TABLE IF NOT EXISTS ` + eventTable + ` (
        id              String,
        org_id          String,
        ts              DateTime('UTC'),
        severity        String,
        detector        String,
        metric          String,
        deviation_score Float64,
        observed        Float64,
        expected        Float64,
        title           String,
        description     String,
        context         String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (org_id, ts, id)`,
}

// CHAnomalyStore persists baselines and flagged events in ClickHouse.
type CHAnomalyStore struct {
	db *sql.DB
}

func NewCHAnomalyStore(ch *pkgch.Client) *CHAnomalyStore {
	return &CHAnomalyStore{db: ch.DB()}
}

var _ domrepo.AnomalyStore = (*CHAnomalyStore)(nil)

func (s *CHAnomalyStore) Init(ctx context.Context) error {
	for _, stmt := range anomalySchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init anomaly schema: %w", err)
		}
	}
	return nil
}

func (s *CHAnomalyStore) SaveBaseline(ctx context.Context, orgID, metric string, b models.StatisticalBaseline) error {
	q := fmt.Sprintf(`INSERT INTO %s
        (org_id, metric, mean, std_dev, median, q1, q3, iqr, upper_threshold, lower_threshold, sample_size, computed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, baselineTable)
	_, err := s.db.ExecContext(ctx, q,
		orgID, metric,
		b.Mean, b.StdDev, b.Median, b.Q1, b.Q3, b.IQR,
		b.UpperThreshold, b.LowerThreshold,
		uint32(b.SampleSize),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	return nil
}

func (s *CHAnomalyStore) SaveEvents(ctx context.Context, events []models.AnomalyResult) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*12)
	for _, e := range events {
		ctxJSON, err := json.Marshal(e.Context)
		if err != nil {
			ctxJSON = []byte("{}")
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.ID, e.OrgID, e.Timestamp.UTC(),
			e.Severity, e.Detector, e.MetricName,
			e.DeviationScore, e.ObservedValue, e.ExpectedValue,
			e.Title, e.Description, string(ctxJSON),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (id, org_id, ts, severity, detector, metric, deviation_score, observed, expected, title, description, context)
        VALUES %s`, eventTable, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}
