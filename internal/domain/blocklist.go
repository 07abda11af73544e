package domain

import "strings"

// Blocklist holds the operator-supplied privacy list: contributors matched by
// name or email are published without a name. Matching ignores case and
// surrounding whitespace.
type Blocklist map[string]struct{}

// ParseBlocklist builds a Blocklist from a newline-separated value. Blank
// lines are skipped.
func ParseBlocklist(raw string) Blocklist {
	b := make(Blocklist)
	for _, line := range strings.Split(raw, "\n") {
		entry := strings.ToLower(strings.TrimSpace(line))
		if entry == "" {
			continue
		}
		b[entry] = struct{}{}
	}
	return b
}

// Contains reports whether v is on the list.
func (b Blocklist) Contains(v string) bool {
	_, ok := b[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
