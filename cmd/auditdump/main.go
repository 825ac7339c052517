// Command auditdump reads a zstd JSONL audit directory, re-checks the
// pool bounds recorded in it, and prints per-type counts (or the raw
// entries with -print).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"embercore.gg/internal/persistence/auditlog"
)

func main() {
	var (
		dir       = flag.String("dir", "", "audit directory containing *.jsonl.zst")
		typFilter = flag.String("type", "", "only consider entries of this type (optional)")
		doPrint   = flag.Bool("print", false, "print entries as JSON lines")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -dir")
		os.Exit(2)
	}

	evs, err := auditlog.ReadAll(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}

	counts := map[string]int{}
	var violations int
	for _, ev := range evs {
		typ, _ := ev["type"].(string)
		if *typFilter != "" && typ != *typFilter {
			continue
		}
		counts[typ]++

		if typ == "ENERGY_CHANGED" {
			cur, okC := ev["current"].(float64)
			max, okM := ev["max"].(float64)
			if !okC || !okM || cur < 0 || cur > max {
				violations++
				fmt.Fprintf(os.Stderr, "bounds violation in stream: %v\n", ev)
			}
		}

		if *doPrint {
			b, _ := json.Marshal(ev)
			fmt.Println(string(b))
		}
	}

	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Printf("%-18s %d\n", typ, counts[typ])
	}
	if violations > 0 {
		fmt.Fprintf(os.Stderr, "audit stream invalid: %d bounds violations\n", violations)
		os.Exit(1)
	}
	fmt.Printf("audit ok: %d entries\n", len(evs))
}
