package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	pkgch "LedgerCast/pkg/clickhouse"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/util"
)

const ledgerTable = "ledgercast.transactions"

var ledgerSchema = []string{
	`CREATE DATABASE IF NOT EXISTS ledgercast`,
	`CREATE TABLE IF NOT EXISTS ` + ledgerTable + ` (
        id          String,
        org_id      String,
        date        DateTime('UTC'),
        amount      Decimal(18, 2),
        vendor      String,
        category    String,
        recurring   UInt8,
        payroll     UInt8,
        inserted_at DateTime('UTC') DEFAULT now()
    ) ENGINE = ReplacingMergeTree(inserted_at)
    PARTITION BY toYYYYMM(date)
    ORDER BY (org_id, date, id)`,
}

// CHLedgerStore implements LedgerStore backed by ClickHouse. Aggregations
// are pushed down to the database; only zero-filling of empty periods
// happens in Go.
type CHLedgerStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHLedgerStore(ch *pkgch.Client) *CHLedgerStore {
	return &CHLedgerStore{db: ch.DB()}
}

var _ domrepo.LedgerStore = (*CHLedgerStore)(nil)

// SetLogger injects a structured logger.
func (s *CHLedgerStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHLedgerStore) Init(ctx context.Context) error {
	for _, stmt := range ledgerSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init ledger schema: %w", err)
		}
	}
	return nil
}

func (s *CHLedgerStore) StoreBatch(ctx context.Context, txns []*models.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	// Multi-row VALUES inserts chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(txns); start += chunkSize {
		end := start + chunkSize
		if end > len(txns) {
			end = len(txns)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, t := range txns[start:end] {
			if t == nil || t.OrgID == "" || t.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				t.ID,
				t.OrgID,
				t.Date.UTC(),
				t.Amount.StringFixed(2),
				t.Vendor,
				t.Category,
				boolToUInt8(t.Recurring),
				boolToUInt8(t.Payroll),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (id, org_id, date, amount, vendor, category, recurring, payroll) VALUES %s",
			ledgerTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store batch: %w", err)
		}
	}
	return nil
}

func (s *CHLedgerStore) FetchTransactions(ctx context.Context, orgID string, from, to time.Time) ([]*models.Transaction, error) {
	q := fmt.Sprintf(`
        SELECT id, org_id, date, toString(amount), vendor, category, recurring, payroll
        FROM %s
        WHERE org_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, ledgerTable)
	rows, err := s.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var amount string
		var recurring, payroll uint8
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Date, &amount, &t.Vendor, &t.Category, &recurring, &payroll); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		t.Recurring = recurring != 0
		t.Payroll = payroll != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *CHLedgerStore) CountTransactions(ctx context.Context, orgID string, from, to time.Time) (int, error) {
	q := fmt.Sprintf("SELECT count() FROM %s WHERE org_id = ? AND date >= ? AND date <= ?", ledgerTable)
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, orgID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

// DailyExpenseTotals aggregates absolute daily spend from negative-amount
// rows. Days without spend between the first data day and `to` are filled
// with zeros so quiet days count against the baseline.
func (s *CHLedgerStore) DailyExpenseTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.DailyTotal, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT toDate(date) AS day, toFloat64(sum(abs(amount))) AS total
        FROM %s
        WHERE org_id = ? AND date >= ? AND date <= ? AND amount < 0
        GROUP BY day
        ORDER BY day ASC
    `, ledgerTable)
	rows, err := s.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily expense totals: %w", err)
	}
	defer rows.Close()

	byDay := make(map[time.Time]float64)
	var first time.Time
	for rows.Next() {
		var day time.Time
		var total float64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		day = util.DayStart(day)
		if first.IsZero() {
			first = day
		}
		byDay[day] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(byDay) == 0 {
		return nil, nil
	}

	last := util.DayStart(to)
	out := make([]models.DailyTotal, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, models.DailyTotal{Day: d, Total: byDay[d]})
	}
	if s.l != nil {
		s.l.Debug("clickhouse daily totals",
			applogger.String("org_id", orgID),
			applogger.Int("days", len(out)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return out, nil
}

// MonthlyCashFlows aggregates signed flows per calendar month, zero-filling
// months without activity between the first data month and `to` so the
// calendar stays continuous.
func (s *CHLedgerStore) MonthlyCashFlows(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyCashFlow, error) {
	q := fmt.Sprintf(`
        SELECT
            toStartOfMonth(date) AS month,
            toFloat64(sumIf(amount, amount > 0))      AS inflows,
            toFloat64(abs(sumIf(amount, amount < 0))) AS outflows
        FROM %s
        WHERE org_id = ? AND date >= ? AND date <= ?
        GROUP BY month
        ORDER BY month ASC
    `, ledgerTable)
	rows, err := s.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly cash flows: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[time.Time]models.MonthlyCashFlow)
	var first time.Time
	for rows.Next() {
		var m models.MonthlyCashFlow
		if err := rows.Scan(&m.Month, &m.Inflows, &m.Outflows); err != nil {
			return nil, fmt.Errorf("scan monthly flow: %w", err)
		}
		m.Month = util.MonthStart(m.Month)
		m.NetCashFlow = m.Inflows - m.Outflows
		if first.IsZero() {
			first = m.Month
		}
		byMonth[m.Month] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(byMonth) == 0 {
		return nil, nil
	}

	last := util.MonthStart(to)
	var out []models.MonthlyCashFlow
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		if flow, ok := byMonth[m]; ok {
			out = append(out, flow)
		} else {
			out = append(out, models.MonthlyCashFlow{Month: m})
		}
	}
	return out, nil
}

func (s *CHLedgerStore) VendorMonthlyTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyTotal, error) {
	return s.groupMonthlyTotals(ctx, "vendor", orgID, from, to)
}

func (s *CHLedgerStore) CategoryMonthlyTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyTotal, error) {
	return s.groupMonthlyTotals(ctx, "category", orgID, from, to)
}

func (s *CHLedgerStore) groupMonthlyTotals(ctx context.Context, column, orgID string, from, to time.Time) ([]models.MonthlyTotal, error) {
	q := fmt.Sprintf(`
        SELECT %s AS key, toStartOfMonth(date) AS month, toFloat64(sum(abs(amount))) AS total
        FROM %s
        WHERE org_id = ? AND date >= ? AND date <= ? AND amount < 0 AND %s != ''
        GROUP BY key, month
        ORDER BY key ASC, month ASC
    `, column, ledgerTable, column)
	rows, err := s.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s monthly totals: %w", column, err)
	}
	defer rows.Close()

	var out []models.MonthlyTotal
	for rows.Next() {
		var t models.MonthlyTotal
		if err := rows.Scan(&t.Key, &t.Month, &t.Total); err != nil {
			return nil, fmt.Errorf("scan %s total: %w", column, err)
		}
		t.Month = util.MonthStart(t.Month)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *CHLedgerStore) ActiveOrgIDs(ctx context.Context, since time.Time) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT org_id FROM %s WHERE inserted_at >= ?", ledgerTable)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("active org ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			return nil, fmt.Errorf("scan org id: %w", err)
		}
		out = append(out, orgID)
	}
	return out, rows.Err()
}

func (s *CHLedgerStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHLedgerStore) Close() error {
	return nil // pool is owned by pkg/clickhouse
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
