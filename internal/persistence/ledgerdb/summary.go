package ledgerdb

import (
	"database/sql"
	"fmt"
)

// Summary aggregates a ledger file for reporting.
type Summary struct {
	Purchases       int
	EnergyPurchased int64
	CurrencySpent   int64

	Validations        int
	ValidationFailures int

	RecoveryTicks   int
	EnergyRecovered int64
}

// Summarize opens its own read connection, so it works on a ledger file
// whose writer has been closed (the writer holds the single write conn).
func Summarize(path string) (Summary, error) {
	var sum Summary
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return sum, err
	}
	defer db.Close()

	row := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(granted),0), COALESCE(SUM(total_cost),0) FROM purchases`)
	if err := row.Scan(&sum.Purchases, &sum.EnergyPurchased, &sum.CurrencySpent); err != nil {
		return sum, fmt.Errorf("ledgerdb: purchases: %w", err)
	}
	row = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(1-valid),0) FROM validations`)
	if err := row.Scan(&sum.Validations, &sum.ValidationFailures); err != nil {
		return sum, fmt.Errorf("ledgerdb: validations: %w", err)
	}
	row = db.QueryRow(`SELECT COALESCE(SUM(ticks),0), COALESCE(SUM(amount),0) FROM recoveries`)
	if err := row.Scan(&sum.RecoveryTicks, &sum.EnergyRecovered); err != nil {
		return sum, fmt.Errorf("ledgerdb: recoveries: %w", err)
	}
	return sum, nil
}
