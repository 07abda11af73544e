// Package reconcile collapses duplicate contributor records within one
// platform's output into single ledger entries.
package reconcile

import (
	"strings"

	"github.com/google/uuid"

	"github.com/patronage-dev/patronage/internal/domain"
)

// KeyFunc derives the grouping identity for one pledge. An empty key means
// the pledge carries no usable identity; Merge assigns it a synthetic
// unique token so it never merges with anyone.
type KeyFunc func(domain.Pledge) string

// Merge groups pledges by key and folds each group into one pledge:
// amounts sum exactly, the last record in iteration order wins the display
// attributes (order-sensitive on purpose), and groups keep first-seen
// order. The input is never mutated.
func Merge(pledges []domain.Pledge, key KeyFunc) []domain.Pledge {
	index := make(map[string]int, len(pledges))
	merged := make([]domain.Pledge, 0, len(pledges))
	for _, p := range pledges {
		k := key(p)
		if k == "" {
			k = "anon:" + uuid.NewString()
		}
		at, ok := index[k]
		if !ok {
			index[k] = len(merged)
			merged = append(merged, p)
			continue
		}
		p.Amount = merged[at].Amount.Add(p.Amount)
		merged[at] = p
	}
	return merged
}

// Reconcile runs the two-pass merge and projects the survivors. Pass one
// groups by normalized email, falling back to normalized name for pledges
// without one; pass two re-groups the result by name alone, catching
// contributors who pledged under different emails with the same display
// name. Email identity deliberately takes precedence. Groups whose summed
// amount is not positive are dropped.
func Reconcile(pledges []domain.Pledge) []domain.Donation {
	merged := Merge(Merge(pledges, identityKey), nameKey)

	donations := make([]domain.Donation, 0, len(merged))
	for _, p := range merged {
		if !p.Amount.IsPositive() {
			continue
		}
		donations = append(donations, p.Donation())
	}
	return donations
}

// identityKey keys by email when present, name otherwise. The prefixes keep
// an email from ever colliding with an equal name string.
func identityKey(p domain.Pledge) string {
	if email := normalize(p.Email); email != "" {
		return "email:" + email
	}
	return nameKey(p)
}

func nameKey(p domain.Pledge) string {
	if name := normalize(p.Name); name != "" {
		return "name:" + name
	}
	return ""
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
