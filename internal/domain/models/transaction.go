package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger row for an organization. Amounts are signed:
// inflows positive, outflows negative. Decimal at the storage boundary;
// the numeric services work on aggregated float64 series.
type Transaction struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Vendor    string          `json:"vendor,omitempty"`
	Category  string          `json:"category,omitempty"`
	Recurring bool            `json:"recurring,omitempty"`
	Payroll   bool            `json:"payroll,omitempty"`
}

// TimeSeriesPoint is one aggregated metric value per day or month.
// Periods within a series are unique and chronologically non-decreasing.
type TimeSeriesPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// DailyTotal is an aggregated daily expense total (absolute value of
// negative-amount transactions).
type DailyTotal struct {
	Day   time.Time `json:"day"`
	Total float64   `json:"total"`
}

// MonthlyCashFlow is one zero-filled calendar month of aggregated flows.
// Month is the first day of the month in UTC. Months with no transactions
// contribute zeros, not omission, so the calendar stays continuous.
type MonthlyCashFlow struct {
	Month       time.Time `json:"month"`
	Inflows     float64   `json:"inflows"`
	Outflows    float64   `json:"outflows"`
	NetCashFlow float64   `json:"net_cash_flow"`
}

// MonthlyTotal is one month of spend for a vendor or category.
type MonthlyTotal struct {
	Key   string    `json:"key"`
	Month time.Time `json:"month"`
	Total float64   `json:"total"`
}
