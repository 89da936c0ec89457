package entities

import "strings"

// NormalizeAddress trims and lower-cases s. An empty result stands for "no
// recipient", e.g. a contract creation.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Dedupe keeps the first record seen for every identity key, preserving order.
func Dedupe[R Record](records []R) []R {
	seen := make(map[string]struct{}, len(records))
	out := make([]R, 0, len(records))

	for _, r := range records {
		k := r.GetKey()
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, r)
	}

	return out
}

// MaxBlock returns the highest block number in records.
func MaxBlock[R Record](records []R) (uint64, bool) {
	var (
		highest uint64
		found   bool
	)
	for _, r := range records {
		if !found || r.GetBlockNumber() > highest {
			highest = r.GetBlockNumber()
			found = true
		}
	}

	return highest, found
}

// Touches reports whether address appears as sender or recipient of r.
func Touches(r Record, address string) bool {
	a := NormalizeAddress(address)
	return a != "" && (r.GetFrom() == a || r.GetTo() == a)
}
