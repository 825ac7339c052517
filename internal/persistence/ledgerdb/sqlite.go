// Package ledgerdb keeps a queryable SQLite index of purchases,
// validations and recovery grants. Writes go through a single writer
// goroutine so callers never block on the database.
package ledgerdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"embercore.gg/internal/energy/economy"
	"embercore.gg/internal/energy/validation"
)

type Ledger struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqPurchase reqKind = iota + 1
	reqValidation
	reqRecovery
)

type req struct {
	kind reqKind

	purchase   economy.Result
	validation validation.Result
	recovery   recoveryRow
}

type recoveryRow struct {
	At     string
	Ticks  int
	Amount int
	Source string
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := &Ledger{
		db: db,
		// Large buffer: bursty validation traffic must not stall gameplay.
		ch: make(chan req, 65536),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.loop()
	}()
	return l, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS purchases (
			txn_id TEXT PRIMARY KEY,
			at TEXT NOT NULL,
			requested INTEGER NOT NULL,
			granted INTEGER NOT NULL,
			unit_cost INTEGER NOT NULL,
			bulk_mult TEXT NOT NULL,
			demand_mult TEXT NOT NULL,
			total_cost INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_at ON purchases(at);`,
		`CREATE TABLE IF NOT EXISTS validations (
			at TEXT NOT NULL,
			seq INTEGER NOT NULL,
			requested INTEGER NOT NULL,
			valid INTEGER NOT NULL,
			failed_rule TEXT,
			code TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (at, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_validations_code ON validations(code);`,
		`CREATE TABLE IF NOT EXISTS recoveries (
			at TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recoveries_at ON recoveries(at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) Close() error {
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

// RecordPurchase indexes a successful purchase. Failed attempts stay in
// the audit log only.
func (l *Ledger) RecordPurchase(res economy.Result) {
	if l == nil || l.closed.Load() || !res.Success {
		return
	}
	select {
	case l.ch <- req{kind: reqPurchase, purchase: res}:
	default:
		// Drop if the indexer falls behind; the audit log remains the source of truth.
	}
}

func (l *Ledger) RecordValidation(res validation.Result) {
	if l == nil || l.closed.Load() {
		return
	}
	select {
	case l.ch <- req{kind: reqValidation, validation: res}:
	default:
	}
}

func (l *Ledger) RecordRecovery(at time.Time, ticks, amount int, source string) {
	if l == nil || l.closed.Load() {
		return
	}
	if ticks <= 0 && amount <= 0 {
		return
	}
	r := recoveryRow{
		At:     at.UTC().Format(time.RFC3339Nano),
		Ticks:  ticks,
		Amount: amount,
		Source: source,
	}
	select {
	case l.ch <- req{kind: reqRecovery, recovery: r}:
	default:
	}
}

func (l *Ledger) loop() {
	ctx := context.Background()

	insertPurchase, _ := l.db.Prepare(`INSERT OR REPLACE INTO purchases(txn_id,at,requested,granted,unit_cost,bulk_mult,demand_mult,total_cost,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertValidation, _ := l.db.Prepare(`INSERT OR REPLACE INTO validations(at,seq,requested,valid,failed_rule,code,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertRecovery, _ := l.db.Prepare(`INSERT INTO recoveries(at,ticks,amount,source) VALUES(?,?,?,?)`)
	defer func() {
		if insertPurchase != nil {
			_ = insertPurchase.Close()
		}
		if insertValidation != nil {
			_ = insertValidation.Close()
		}
		if insertRecovery != nil {
			_ = insertRecovery.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastValidationAt string
		validationSeq    int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range l.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqPurchase:
			p := r.purchase
			raw, _ := json.Marshal(p)
			if insertPurchase != nil {
				if _, err := tx.Stmt(insertPurchase).Exec(
					p.TransactionID,
					p.Timestamp.UTC().Format(time.RFC3339Nano),
					p.RequestedAmount,
					p.ActualAmount,
					p.UnitCost,
					p.BulkMultiplier.String(),
					p.DemandMultiplier.String(),
					p.TotalCost,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqValidation:
			v := r.validation
			at := v.Timestamp.UTC().Format(time.RFC3339Nano)
			if at != lastValidationAt {
				lastValidationAt = at
				validationSeq = 0
			}
			seq := validationSeq
			validationSeq++
			raw, _ := json.Marshal(v)
			if insertValidation != nil {
				valid := 0
				if v.Valid {
					valid = 1
				}
				if _, err := tx.Stmt(insertValidation).Exec(
					at,
					seq,
					v.RequestedAmount,
					valid,
					v.FailedRule,
					v.ErrorCode,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqRecovery:
			rr := r.recovery
			if insertRecovery != nil {
				if _, err := tx.Stmt(insertRecovery).Exec(
					rr.At,
					rr.Ticks,
					rr.Amount,
					rr.Source,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
