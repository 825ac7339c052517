// Command pricetable prints the purchase price matrix for a tuning file:
// one row per pool level, one column per purchase amount. Useful for
// reviewing tier changes before they ship.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/economy"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/tuning"
)

// denyWallet never funds anything: pricetable only quotes.
type denyWallet struct{}

func (denyWallet) HasSufficientFunds(int64) bool { return false }
func (denyWallet) Charge(int64) bool             { return false }

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}
	store := tuning.NewStore(tune)

	p, err := pool.New(store, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pool:", err)
		os.Exit(1)
	}
	engine, err := economy.New(store, p, denyWallet{}, clock.System{}, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "economy:", err)
		os.Exit(1)
	}

	amounts := []int{1, 5, 10, 25, 50}
	levels := []int{0, 25, 50, 75, 90, 95, tune.MaxEnergy - 1}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "pool")
	for _, a := range amounts {
		fmt.Fprintf(w, "\tbuy %d", a)
	}
	fmt.Fprintln(w)

	for _, lvl := range levels {
		if lvl < 0 || lvl >= tune.MaxEnergy {
			continue
		}
		p.SyncFromExternal(lvl, tune.MaxEnergy)
		fmt.Fprintf(w, "%d/%d", lvl, tune.MaxEnergy)
		for _, a := range amounts {
			q := engine.QuotePurchase(a)
			again := engine.QuotePurchase(a)
			if q.TotalCost != again.TotalCost || q.ActualAmount != again.ActualAmount {
				fmt.Fprintln(os.Stderr, "quote not stable at", lvl, a)
				os.Exit(1)
			}
			if !q.Valid {
				fmt.Fprintf(w, "\t%s", q.ErrorCode)
				continue
			}
			fmt.Fprintf(w, "\t%d (x%s x%s)", q.TotalCost, q.BulkMultiplier, q.DemandMultiplier)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "flush:", err)
		os.Exit(1)
	}
}
