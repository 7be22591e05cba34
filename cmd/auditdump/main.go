// Command auditdump summarizes the Parquet audit trail written by a
// reflexgate instance, answering "what was flagged, and by which
// patterns" without a database round trip.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/reflexgate/reflexgate/internal/audit"
)

func main() {
	var (
		dir      = flag.String("dir", "audit", "Directory containing audit-*.parquet files")
		since    = flag.Duration("since", 0, "Only include entries newer than now minus this duration (0 = all)")
		pattern  = flag.String("pattern", "", "Only include entries matching this pattern id")
		asJSON   = flag.Bool("json", false, "Emit matching entries as JSON lines instead of a summary")
		endpoint = flag.String("endpoint", "", "Only include entries for this endpoint tag")
	)
	flag.Parse()

	if _, err := os.Stat(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir audit --since 24h\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir audit --pattern ssn --json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\naudit directory: %v\n", err)
		os.Exit(1)
	}

	cutoff := time.Time{}
	if *since > 0 {
		cutoff = time.Now().Add(-*since)
	}

	var (
		total, flagged, blocked, cacheHits int
		oldest, newest                     time.Time
		byPattern                          = map[string]int{}
		bySeverity                         = map[string]int{}
		enc                                = json.NewEncoder(os.Stdout)
	)

	err := audit.ScanParquetDir(*dir, func(e audit.Entry) error {
		if !cutoff.IsZero() && e.OccurredAt.Before(cutoff) {
			return nil
		}
		if *endpoint != "" && e.EndpointTag != *endpoint {
			return nil
		}
		patterns := splitPatterns(e.PIIPatterns, e.InjectionPatterns)
		if *pattern != "" && !contains(patterns, *pattern) {
			return nil
		}

		if *asJSON {
			return enc.Encode(e)
		}

		total++
		if e.Flagged {
			flagged++
		}
		if e.Blocked {
			blocked++
		}
		if e.CacheHit {
			cacheHits++
		}
		for _, p := range patterns {
			byPattern[p]++
		}
		if e.TopSeverity != "" {
			bySeverity[e.TopSeverity]++
		}
		if oldest.IsZero() || e.OccurredAt.Before(oldest) {
			oldest = e.OccurredAt
		}
		if e.OccurredAt.After(newest) {
			newest = e.OccurredAt
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to scan audit trail: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		return
	}

	if total == 0 {
		fmt.Println("No matching audit entries.")
		return
	}

	fmt.Printf("Entries:   %d (%s .. %s)\n", total,
		oldest.Format(time.RFC3339), newest.Format(time.RFC3339))
	fmt.Printf("Flagged:   %d\n", flagged)
	fmt.Printf("Blocked:   %d\n", blocked)
	fmt.Printf("Cache hits: %d\n", cacheHits)

	fmt.Println("\nBy pattern:")
	for _, k := range sortedKeys(byPattern) {
		fmt.Printf("  %-28s %d\n", k, byPattern[k])
	}
	fmt.Println("\nBy top severity:")
	for _, k := range sortedKeys(bySeverity) {
		fmt.Printf("  %-28s %d\n", k, bySeverity[k])
	}
}

func splitPatterns(lists ...string) []string {
	var out []string
	for _, list := range lists {
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, p := range list {
		if p == want {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
