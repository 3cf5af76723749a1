package compare

import (
	"fmt"

	"github.com/copperkey/renewals/snapshot"
)

// The diff layer computes field-level rows across the two snapshots. It
// only signals magnitude and direction; a larger limit or deductible is not
// uniformly good or bad, so severity semantics are left to the rules.

const noChangeText = "No change"

// resolveCoverageValue picks the comparable value for a coverage row.
// Order: the typed numeric limit, then the parsed raw limit string, then
// the premium. A typed numeric limit is more reliable than a carrier's raw
// string field. ok=false means the coverage only resolves textually.
func resolveCoverageValue(c snapshot.Coverage) (amount float64, display string, ok bool) {
	if c.LimitAmount != nil {
		return *c.LimitAmount, formatAmount(*c.LimitAmount), true
	}
	if c.Limit != "" {
		if n, parsed := parseLimit(c.Limit); parsed {
			return n, formatAmount(n), true
		}
		return 0, c.Limit, false
	}
	if c.Premium != nil {
		return *c.Premium, formatAmount(*c.Premium), true
	}
	return 0, "-", false
}

// resolveDeductibleValue is the deductible-scoped analogue: the typed
// deductible amount, then the parsed raw limit string.
func resolveDeductibleValue(c snapshot.Coverage) (amount float64, display string, ok bool) {
	if c.DeductibleAmount != nil {
		return *c.DeductibleAmount, formatAmount(*c.DeductibleAmount), true
	}
	if c.Limit != "" {
		if n, parsed := parseLimit(c.Limit); parsed {
			return n, formatAmount(n), true
		}
		return 0, c.Limit, false
	}
	return 0, "-", false
}

type resolver func(snapshot.Coverage) (float64, string, bool)

// buildRow classifies one matched (or half-matched) coverage pair.
func buildRow(typeKey string, b, r *snapshot.Coverage, resolve resolver) Row {
	row := Row{Type: typeKey, Label: CoverageLabel(typeKey)}

	switch {
	case b == nil && r != nil:
		amt, display, ok := resolve(*r)
		if ok {
			row.RenewalAmount = &amt
		}
		row.BaselineDisplay = "-"
		row.RenewalDisplay = display
		row.Status = RowAdded
		row.Direction = DirectionNone
		row.ChangeText = "NEW"
		return row

	case b != nil && r == nil:
		amt, display, ok := resolve(*b)
		if ok {
			row.BaselineAmount = &amt
		}
		row.BaselineDisplay = display
		row.RenewalDisplay = "-"
		row.Status = RowRemoved
		row.Direction = DirectionNone
		row.ChangeText = "REMOVED"
		return row
	}

	bAmt, bDisplay, bOK := resolve(*b)
	rAmt, rDisplay, rOK := resolve(*r)
	row.BaselineDisplay = bDisplay
	row.RenewalDisplay = rDisplay

	if !bOK || !rOK {
		// One side is textual only; degrade to a neutral comparison for
		// this field rather than aborting the batch.
		row.Status = RowUnchanged
		row.Direction = DirectionNone
		row.ChangeText = noChangeText
		return row
	}

	row.BaselineAmount = &bAmt
	row.RenewalAmount = &rAmt

	if bAmt == rAmt {
		row.Status = RowUnchanged
		row.Direction = DirectionNone
		row.ChangeText = noChangeText
		return row
	}

	row.Status = RowChanged
	if rAmt > bAmt {
		row.Direction = DirectionUp
	} else {
		row.Direction = DirectionDown
	}

	if bAmt == 0 {
		// Percentage is undefined against a zero baseline; show the
		// absolute movement instead.
		row.ChangeText = fmt.Sprintf("%s → %s", bDisplay, rDisplay)
		return row
	}

	pct := (rAmt - bAmt) / bAmt * 100
	row.PctChange = &pct
	row.ChangeText = formatPct(pct)
	return row
}

// coverageEntry keeps original ordering through the set join.
type coverageEntry struct {
	key string
	cov snapshot.Coverage
}

// indexCoverages canonicalizes type keys and resolves duplicate keys by
// first-occurrence priority.
func indexCoverages(carrier string, coverages []snapshot.Coverage) []coverageEntry {
	seen := make(map[string]bool)
	var entries []coverageEntry
	for _, c := range coverages {
		key := CanonicalType(carrier, c.Type)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, coverageEntry{key: key, cov: c})
	}
	return entries
}

// diffByKey joins two coverage lists on canonical type key: baseline rows
// in original order first (matched or removed), then renewal-only rows in
// original order. Every key present in either snapshot gets exactly one row.
func diffByKey(carrier string, baseline, renewal []snapshot.Coverage, resolve resolver) []Row {
	bEntries := indexCoverages(carrier, baseline)
	rEntries := indexCoverages(carrier, renewal)

	rByKey := make(map[string]snapshot.Coverage, len(rEntries))
	for _, e := range rEntries {
		rByKey[e.key] = e.cov
	}
	bKeys := make(map[string]bool, len(bEntries))

	var rows []Row
	for _, e := range bEntries {
		bKeys[e.key] = true
		b := e.cov
		if r, ok := rByKey[e.key]; ok {
			rows = append(rows, buildRow(e.key, &b, &r, resolve))
		} else {
			rows = append(rows, buildRow(e.key, &b, nil, resolve))
		}
	}
	for _, e := range rEntries {
		if bKeys[e.key] {
			continue
		}
		r := e.cov
		rows = append(rows, buildRow(e.key, nil, &r, resolve))
	}
	return rows
}

// DiffCoverages computes one row per coverage type key present in either
// snapshot. A nil baseline yields all-added rows (renewal-only mode).
func DiffCoverages(carrier string, baseline, renewal []snapshot.Coverage) []Row {
	return diffByKey(carrier, baseline, renewal, resolveCoverageValue)
}

// DiffDeductibles compares the deductible-bearing coverage lines at policy
// level.
func DiffDeductibles(carrier string, baseline, renewal []snapshot.Coverage) []Row {
	return diffByKey(carrier, deductibleLines(baseline), deductibleLines(renewal), resolveDeductibleValue)
}

func deductibleLines(coverages []snapshot.Coverage) []snapshot.Coverage {
	var out []snapshot.Coverage
	for _, c := range coverages {
		if c.DeductibleAmount != nil {
			out = append(out, c)
		}
	}
	return out
}

// DiffVehicleDeductibles scopes deductible comparison to each matched
// vehicle pair from the entity matcher. Unmatched vehicles contribute no
// deductible rows; they surface through the vehicle rules instead.
func DiffVehicleDeductibles(carrier string, vehicles MatchResult[snapshot.Vehicle, snapshot.Vehicle]) []VehicleDeductibles {
	var out []VehicleDeductibles
	for _, p := range vehicles.Paired {
		rows := DiffDeductibles(carrier, p.Baseline.Coverages, p.Renewal.Coverages)
		if len(rows) == 0 {
			continue
		}
		out = append(out, VehicleDeductibles{
			VIN:   p.Renewal.VIN,
			Label: vehicleLabel(p.Renewal),
			Rows:  rows,
		})
	}
	return out
}

func vehicleLabel(v snapshot.Vehicle) string {
	if v.Model != "" {
		return fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
	}
	return fmt.Sprintf("%d %s", v.Year, v.Make)
}

// DiffDiscounts buckets discounts into kept / added / removed by
// normalized code.
func DiffDiscounts(baseline, renewal []snapshot.Discount) DiscountDiff {
	bKeys := make(map[string]bool, len(baseline))
	rKeys := make(map[string]bool, len(renewal))
	for _, d := range baseline {
		bKeys[normalizeDiscountKey(d.Code, d.Description)] = true
	}
	for _, d := range renewal {
		rKeys[normalizeDiscountKey(d.Code, d.Description)] = true
	}

	var diff DiscountDiff
	seen := make(map[string]bool)
	for _, d := range baseline {
		key := normalizeDiscountKey(d.Code, d.Description)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if rKeys[key] {
			diff.Kept = append(diff.Kept, d)
		} else {
			diff.Removed = append(diff.Removed, d)
		}
	}
	seen = make(map[string]bool)
	for _, d := range renewal {
		key := normalizeDiscountKey(d.Code, d.Description)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if !bKeys[key] {
			diff.Added = append(diff.Added, d)
		}
	}
	return diff
}

// DiffPremium builds the single premium row when either side carries a
// total premium.
func DiffPremium(baseline, renewal *snapshot.Snapshot) *Row {
	var b, r *snapshot.Coverage
	if baseline != nil && baseline.TotalPremium != nil {
		b = &snapshot.Coverage{Type: "premium", Premium: baseline.TotalPremium}
	}
	if renewal != nil && renewal.TotalPremium != nil {
		r = &snapshot.Coverage{Type: "premium", Premium: renewal.TotalPremium}
	}
	if b == nil && r == nil {
		return nil
	}
	row := buildRow("premium", b, r, resolveCoverageValue)
	row.Label = "Total Premium"
	return &row
}

// BuildDiffSet runs the matcher and all diff functions over a snapshot
// pair. baseline may be nil (renewal-only degraded mode).
func BuildDiffSet(baseline, renewal *snapshot.Snapshot) *DiffSet {
	carrier := renewal.Carrier

	var bCov []snapshot.Coverage
	var bVeh []snapshot.Vehicle
	var bDisc []snapshot.Discount
	if baseline != nil {
		bCov = baseline.Coverages
		bVeh = baseline.Vehicles
		bDisc = baseline.Discounts
	}

	vehicles := MatchVehicles(bVeh, renewal.Vehicles)

	return &DiffSet{
		Coverages:          DiffCoverages(carrier, bCov, renewal.Coverages),
		Deductibles:        DiffDeductibles(carrier, bCov, renewal.Coverages),
		VehicleDeductibles: DiffVehicleDeductibles(carrier, vehicles),
		Discounts:          DiffDiscounts(bDisc, renewal.Discounts),
		Vehicles:           vehicles,
		Premium:            DiffPremium(baseline, renewal),
	}
}
