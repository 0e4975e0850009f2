package model

import "time"

// BalanceReading is the outcome of one retrieval attempt for a meter.
// Balance is nil when the portal page carried no parseable balance field;
// Err is set when retrieval itself failed after exhausting retries. Both
// cases render as "could not fetch balance" for the user.
type BalanceReading struct {
	CustomerNo   string
	Balance      *float64
	UpdatedLabel string
	FetchedAt    time.Time
	Err          error
}

// HasBalance reports whether the reading carries a usable balance figure.
func (r *BalanceReading) HasBalance() bool {
	return r.Err == nil && r.Balance != nil
}

// IsLowBalance reports whether a balance is strictly below the threshold.
// A missing balance is never low.
func IsLowBalance(balance *float64, threshold float64) bool {
	return balance != nil && *balance < threshold
}
