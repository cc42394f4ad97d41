package report

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// DefaultWindowDays is the report window used when the caller does not
// supply one.
const DefaultWindowDays = 30

// Summarize sums record totals by category over the trailing window ending
// at nowUTC. Records older than the cutoff or with a missing timestamp are
// skipped; categories are lower-cased before grouping, with blank categories
// folded into "other". Buckets come back sorted by total, largest first;
// tie order follows first appearance in the input but callers must not rely
// on it.
func Summarize(records []schema.TransactionRecord, windowDays int, nowUTC time.Time) []schema.CategoryBucket {
	cutoff := nowUTC.AddDate(0, 0, -windowDays)

	sums := make(map[string]float64)
	var order []string

	for _, rec := range records {
		if rec.Ts.IsZero() || rec.Ts.Before(cutoff) {
			continue
		}

		cat := strings.ToLower(strings.TrimSpace(rec.Category))
		if cat == "" {
			cat = schema.CategoryOther
		}

		if _, seen := sums[cat]; !seen {
			order = append(order, cat)
		}
		sums[cat] += rec.Total
	}

	buckets := make([]schema.CategoryBucket, 0, len(order))
	for _, cat := range order {
		buckets = append(buckets, schema.CategoryBucket{
			Category: cat,
			Total:    round2(sums[cat]),
		})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Total > buckets[j].Total
	})

	return buckets
}

// round2 rounds to cents, half away from zero. The epsilon compensates for
// binary representation error so decimal midpoints like 15.005 round up
// instead of landing just below the midpoint.
func round2(v float64) float64 {
	return math.Round(v*100+math.Copysign(1e-9, v)) / 100
}
