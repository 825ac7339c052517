// Command energysim runs a scripted day of play against the energy
// system: spend, go offline, catch up, buy back. It writes the audit
// stream and ledger to -out and prints a summary.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/economy"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/recovery"
	"embercore.gg/internal/energy/tuning"
	"embercore.gg/internal/energy/validation"
	"embercore.gg/internal/persistence/auditlog"
	"embercore.gg/internal/persistence/ledgerdb"
)

// simWallet is a plain funded wallet for scripted runs.
type simWallet struct {
	balance int64
}

func (w *simWallet) HasSufficientFunds(cost int64) bool { return w.balance >= cost }

func (w *simWallet) Charge(cost int64) bool {
	if w.balance < cost {
		return false
	}
	w.balance -= cost
	return true
}

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file")
		schemaPath = flag.String("schema", "./schemas/tuning.schema.json", "tuning schema (empty to skip)")
		outDir     = flag.String("out", "./energysim-out", "output directory")
		offlineMin = flag.Int("offline_min", 180, "offline gap in minutes")
		funds      = flag.Int64("funds", 500, "starting wallet balance")
	)
	flag.Parse()

	if *schemaPath != "" {
		if err := tuning.ValidateSchema(*tuningPath, *schemaPath); err != nil {
			fmt.Fprintln(os.Stderr, "schema:", err)
			os.Exit(1)
		}
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}
	store := tuning.NewStore(tune)

	clk := clock.NewManual(time.Unix(1_700_000_000, 0).UTC())
	audit := auditlog.NewLogger(filepath.Join(*outDir, "audit"), clk)
	defer audit.Close()

	ledger, err := ledgerdb.Open(filepath.Join(*outDir, "ledger.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledger:", err)
		os.Exit(1)
	}

	p, err := pool.New(store, audit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pool:", err)
		os.Exit(1)
	}
	sched, err := recovery.New(store, p, clk, audit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "recovery:", err)
		os.Exit(1)
	}
	pipe, err := validation.New(store, p, clk, audit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "validation:", err)
		os.Exit(1)
	}
	wallet := &simWallet{balance: *funds}
	engine, err := economy.New(store, p, wallet, clk, audit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "economy:", err)
		os.Exit(1)
	}

	// Every state change must stay inside [0, max].
	p.Subscribe("bounds", pool.Hooks{
		OnChanged: func(current, max int) {
			if current < 0 || current > max {
				fmt.Fprintf(os.Stderr, "bounds violation: current=%d max=%d\n", current, max)
				os.Exit(1)
			}
		},
	})
	pipe.Subscribe("ledger", validation.Hooks{
		OnCompleted: func(res validation.Result) { ledger.RecordValidation(res) },
	})
	sched.Subscribe("ledger", recovery.Hooks{
		OnRecovered: func(amount int) {
			ledger.RecordRecovery(clk.Now(), sched.TickCount(), amount, "SIM")
		},
	})
	engine.Subscribe("ledger", economy.Hooks{
		OnCompleted: func(res economy.Result) { ledger.RecordPurchase(res) },
	})

	spend := func(action string, amount int) {
		res := pipe.Validate(amount, validation.Context{Action: action, Source: "energysim"})
		if !res.Valid {
			fmt.Printf("  %-12s %3d denied  rule=%s code=%s\n", action, amount, res.FailedRule, res.ErrorCode)
			return
		}
		p.Consume(res.ValidatedAmount)
		fmt.Printf("  %-12s %3d ok      pool=%d/%d\n", action, amount, p.Current(), p.Max())
	}

	fmt.Printf("start: pool=%d/%d balance=%d\n", p.Current(), p.Max(), wallet.balance)

	// Morning session.
	fmt.Println("morning session:")
	for i := 0; i < 3; i++ {
		spend("PLAY_LEVEL", 15)
		clk.Advance(2 * time.Minute)
	}
	spend("RAID", 30)
	spend("RAID", 30) // expected to be denied once the pool runs low

	// Offline gap, then catch up in one pass.
	clk.Advance(time.Duration(*offlineMin) * time.Minute)
	ticks := sched.ProcessPendingRecoveries()
	fmt.Printf("offline %dmin: caught up %d ticks, pool=%d/%d\n",
		*offlineMin, ticks, p.Current(), p.Max())

	// Evening session funded by purchases.
	fmt.Println("evening session:")
	spend("RAID", 30)
	for p.Current() < 50 {
		res := engine.Purchase(25)
		if !res.Success {
			fmt.Printf("  purchase denied: code=%s\n", res.ErrorCode)
			break
		}
		fmt.Printf("  purchase     %3d ok      cost=%d balance=%d pool=%d/%d\n",
			res.ActualAmount, res.TotalCost, wallet.balance, p.Current(), p.Max())
	}
	spend("RAID", 30)

	if err := ledger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "ledger close:", err)
		os.Exit(1)
	}
	if err := audit.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "audit close:", err)
		os.Exit(1)
	}

	sum, err := ledgerdb.Summarize(filepath.Join(*outDir, "ledger.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "summarize:", err)
		os.Exit(1)
	}
	fmt.Printf("sim ok: validations=%d (failed=%d, rate=%.2f) purchases=%d spent=%d recovered=%d pool=%d/%d balance=%d\n",
		sum.Validations, sum.ValidationFailures, pipe.Stats().SuccessRate(),
		sum.Purchases, sum.CurrencySpent, sum.EnergyRecovered,
		p.Current(), p.Max(), wallet.balance)
}
