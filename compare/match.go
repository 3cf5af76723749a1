package compare

import (
	"strings"

	"github.com/copperkey/renewals/snapshot"
)

// Pair is one matched baseline/renewal entity pair.
type Pair[B, R any] struct {
	Baseline B `json:"baseline"`
	Renewal  R `json:"renewal"`
}

// MatchResult is the output of pairing entities across two snapshots.
type MatchResult[B, R any] struct {
	Paired  []Pair[B, R] `json:"paired"`
	Removed []B          `json:"removed"`
	Added   []R          `json:"added"`
}

// Match pairs baseline entities against renewal entities using one or more
// identity strategies, strongest first. For each baseline entity the
// unconsumed renewal entities are scanned in original order per strategy;
// the first acceptance consumes the candidate. Baseline entities with no
// acceptable candidate land in Removed, never-consumed renewal entities in
// Added. Output is deterministic for a given input ordering: no map
// iteration, no randomness.
func Match[B, R any](baseline []B, renewal []R, strategies ...func(B, R) bool) MatchResult[B, R] {
	result := MatchResult[B, R]{}
	consumed := make([]bool, len(renewal))

	for _, b := range baseline {
		matched := false
		for _, accept := range strategies {
			for i, r := range renewal {
				if consumed[i] || !accept(b, r) {
					continue
				}
				consumed[i] = true
				result.Paired = append(result.Paired, Pair[B, R]{Baseline: b, Renewal: r})
				matched = true
				break
			}
			if matched {
				break
			}
		}
		if !matched {
			result.Removed = append(result.Removed, b)
		}
	}

	for i, r := range renewal {
		if !consumed[i] {
			result.Added = append(result.Added, r)
		}
	}

	return result
}

// MatchVehicles pairs vehicles by VIN first, then by exact
// (year, make, model). Duplicate VINs within one snapshot resolve by
// first-occurrence priority; the data-quality note for that case is raised
// by snapshot.Validate, not here.
func MatchVehicles(baseline, renewal []snapshot.Vehicle) MatchResult[snapshot.Vehicle, snapshot.Vehicle] {
	return Match(baseline, renewal, sameVIN, sameYMM)
}

func sameVIN(b, r snapshot.Vehicle) bool {
	bv := strings.ToUpper(strings.TrimSpace(b.VIN))
	rv := strings.ToUpper(strings.TrimSpace(r.VIN))
	return bv != "" && rv != "" && bv == rv
}

func sameYMM(b, r snapshot.Vehicle) bool {
	return b.Year == r.Year && b.Make == r.Make && b.Model == r.Model
}
