package snapshot

import (
	"fmt"
	"strings"
)

// Validate checks a snapshot against the canonical-contract invariants and
// returns one note per violation. Violations are data-quality findings, not
// errors: a snapshot with notes is still comparable, the notes travel with
// the comparison report so the reviewing agent can see what was degraded.
func Validate(s *Snapshot) []string {
	if s == nil {
		return nil
	}

	var notes []string

	for i, c := range s.Coverages {
		if c.Type == "" {
			notes = append(notes, fmt.Sprintf("coverage %d has no type key", i))
		}
		if !c.HasValue() {
			notes = append(notes, fmt.Sprintf("coverage %q carries no limit, deductible or premium", coverageRef(c, i)))
		}
	}

	for i, d := range s.Discounts {
		if strings.TrimSpace(d.Code) == "" && strings.TrimSpace(d.Description) == "" {
			notes = append(notes, fmt.Sprintf("discount %d has neither code nor description", i))
		}
	}

	seen := make(map[string]bool)
	for _, v := range s.Vehicles {
		vin := strings.ToUpper(strings.TrimSpace(v.VIN))
		if vin == "" {
			continue
		}
		if seen[vin] {
			notes = append(notes, fmt.Sprintf("duplicate VIN %s within one snapshot; first occurrence wins", vin))
		}
		seen[vin] = true
	}

	if s.PolicyType == "home" && s.Property == nil {
		notes = append(notes, "home policy snapshot is missing property context")
	}

	return notes
}

func coverageRef(c Coverage, i int) string {
	if c.Type != "" {
		return c.Type
	}
	return fmt.Sprintf("#%d", i)
}
