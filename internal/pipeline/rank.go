package pipeline

import (
	"slices"
	"strings"

	"github.com/FranksOps/serpcount/internal/storage"
)

// Rank returns a copy of records ordered by count, highest first. Counts
// compare as integers of any length; anything that is not a digit string,
// storage.Sentinel included, ranks as -1 below every real count. Equal
// counts come out in reverse input order.
func Rank(records []storage.Record) []storage.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b storage.Record) int {
		return CompareCounts(a.Count, b.Count)
	})
	slices.Reverse(out)
	return out
}

// CompareCounts orders two count strings numerically, returning -1, 0 or +1.
func CompareCounts(a, b string) int {
	da, oka := normalizeCount(a)
	db, okb := normalizeCount(b)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	}
	if len(da) != len(db) {
		if len(da) < len(db) {
			return -1
		}
		return 1
	}
	return strings.Compare(da, db)
}

// normalizeCount strips leading zeros from a digit string. ok is false for
// anything that is not a non-empty run of ASCII digits.
func normalizeCount(s string) (digits string, ok bool) {
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	digits = strings.TrimLeft(s, "0")
	if digits == "" {
		digits = "0"
	}
	return digits, true
}
