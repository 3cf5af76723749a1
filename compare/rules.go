package compare

import (
	"fmt"
	"strings"

	"github.com/copperkey/renewals/snapshot"
)

// Config carries the named severity thresholds for the built-in rules.
// Cutoffs are deliberately parameters, not constants: agencies tune them.
type Config struct {
	// PremiumWarnPct is the total-premium increase (percent) above which
	// the premium rule fires a warning.
	PremiumWarnPct float64
	// PremiumCriticalPct escalates the premium rule to critical.
	PremiumCriticalPct float64
	// DwellingChangePct is the dwelling-limit movement (percent, either
	// direction) above which the dwelling rule fires.
	DwellingChangePct float64
	// DeductibleIncreasePct is the deductible increase (percent) above
	// which the deductible rules fire a warning.
	DeductibleIncreasePct float64
	// UnexplainedPremiumPct is the premium increase (percent) that, with
	// no coverage movement to explain it, fires the unexplained-increase
	// rule.
	UnexplainedPremiumPct float64
}

// DefaultConfig returns the thresholds agencies start from.
func DefaultConfig() Config {
	return Config{
		PremiumWarnPct:        10,
		PremiumCriticalPct:    25,
		DwellingChangePct:     5,
		DeductibleIncreasePct: 20,
		UnexplainedPremiumPct: 10,
	}
}

// Context is everything a rule may inspect: the two immutable snapshots
// and the precomputed diffs. Rules never mutate it.
type Context struct {
	Baseline *snapshot.Snapshot
	Renewal  *snapshot.Snapshot
	Diffs    *DiffSet
	Config   Config
}

// Rule is one independent check. Check returns at most one result, or nil
// when the rule is inapplicable or nothing changed. Blocker rules halt
// automated downstream processing when they fire; the engine only emits
// the signal, the surrounding workflow owns the state machine.
type Rule struct {
	ID       string
	Category Category
	Blocker  bool
	Check    func(*Context) *CheckResult
}

// builtinRules is the fixed rule set. Evaluation order must not affect the
// result set: every rule is a pure function of the context, and any
// apparent ordering in presentation is a display concern.
func builtinRules() []Rule {
	return []Rule{
		{ID: "premium_change", Category: CategoryPremium, Check: checkPremiumChange},
		{ID: "unexplained_premium_increase", Category: CategoryPremium, Check: checkUnexplainedPremium},
		{ID: "dwelling_limit_change", Category: CategoryProperty, Blocker: true, Check: checkDwellingLimit},
		{ID: "liability_limit_decrease", Category: CategoryCoverages, Blocker: true, Check: checkLiabilityDecrease},
		{ID: "coverage_removed", Category: CategoryCoverages, Blocker: true, Check: checkCoverageRemoved},
		{ID: "coverage_added", Category: CategoryCoverages, Check: checkCoverageAdded},
		{ID: "deductible_increase", Category: CategoryDeductibles, Check: checkDeductibleIncrease},
		{ID: "vehicle_deductible_change", Category: CategoryDeductibles, Check: checkVehicleDeductibles},
		{ID: "vehicle_removed", Category: CategoryVehicles, Check: checkVehicleRemoved},
		{ID: "vehicle_added", Category: CategoryVehicles, Check: checkVehicleAdded},
		{ID: "driver_removed", Category: CategoryDrivers, Blocker: true, Check: checkDriverRemoved},
		{ID: "driver_added", Category: CategoryDrivers, Check: checkDriverAdded},
		{ID: "discount_removed", Category: CategoryEndorsements, Check: checkDiscountRemoved},
		{ID: "discount_added", Category: CategoryEndorsements, Check: checkDiscountAdded},
		{ID: "property_context_change", Category: CategoryProperty, Check: checkPropertyContext},
		{ID: "claim_activity", Category: CategoryEndorsements, Check: checkClaimActivity},
	}
}

// evaluateRules runs every rule against the context. One rule failing must
// not prevent the others from evaluating: each invocation is wrapped
// independently, and a panic becomes an info-severity diagnostic result.
func evaluateRules(rules []Rule, ctx *Context) []CheckResult {
	var results []CheckResult
	for _, rule := range rules {
		if res := runRule(rule, ctx); res != nil {
			res.RuleID = rule.ID
			res.Category = rule.Category
			// Blocker rules only halt the pipeline on their critical
			// outcome; a warning-grade finding from the same rule is
			// reviewable without stopping automation.
			res.Blocking = rule.Blocker && res.Severity == SeverityCritical
			results = append(results, *res)
		}
	}
	return results
}

func runRule(rule Rule, ctx *Context) (res *CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &CheckResult{
				Field:    "diagnostic",
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("check %s did not complete: %v", rule.ID, r),
			}
		}
	}()
	return rule.Check(ctx)
}

func checkPremiumChange(ctx *Context) *CheckResult {
	row := ctx.Diffs.Premium
	if row == nil || ctx.Baseline == nil || row.Status == RowAdded || row.Status == RowRemoved {
		return nil
	}

	if row.Status == RowUnchanged {
		return &CheckResult{
			Field:    "premium.total",
			Severity: SeverityUnchanged,
			Message:  "Total premium is unchanged",
			Change:   noChangeText,
		}
	}

	change := fmt.Sprintf("Total premium %s to %s (%s)", upDown(row.Direction), row.RenewalDisplay, row.ChangeText)
	res := &CheckResult{Field: "premium.total", Change: change}

	if row.Direction == DirectionDown {
		res.Severity = SeverityInfo
		res.Message = "Total premium decreased"
		return res
	}

	pct := 0.0
	if row.PctChange != nil {
		pct = *row.PctChange
	}
	switch {
	case pct >= ctx.Config.PremiumCriticalPct:
		res.Severity = SeverityCritical
		res.Message = fmt.Sprintf("Total premium increased %s, above the %.0f%% critical threshold", row.ChangeText, ctx.Config.PremiumCriticalPct)
		res.AgentAction = "Review the drivers of the increase and prepare remarketing options before contacting the insured."
	case pct >= ctx.Config.PremiumWarnPct:
		res.Severity = SeverityWarning
		res.Message = fmt.Sprintf("Total premium increased %s, above the %.0f%% threshold", row.ChangeText, ctx.Config.PremiumWarnPct)
		res.AgentAction = "Prepare a premium-change explanation before the renewal call."
	default:
		res.Severity = SeverityInfo
		res.Message = fmt.Sprintf("Total premium increased %s", row.ChangeText)
	}
	return res
}

func checkUnexplainedPremium(ctx *Context) *CheckResult {
	row := ctx.Diffs.Premium
	if row == nil || ctx.Baseline == nil || row.Status != RowChanged || row.Direction != DirectionUp || row.PctChange == nil {
		return nil
	}
	if *row.PctChange < ctx.Config.UnexplainedPremiumPct {
		return nil
	}
	for _, cov := range ctx.Diffs.Coverages {
		if cov.Status != RowUnchanged {
			return nil
		}
	}
	return &CheckResult{
		Field:       "premium.unexplained",
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("Premium increased %s with no coverage change to explain it", row.ChangeText),
		Change:      row.ChangeText,
		AgentAction: "Contact the carrier for the rate-change drivers (territory, credit tier, claims surcharge) before presenting the renewal.",
	}
}

func checkDwellingLimit(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	row := findRow(ctx.Diffs.Coverages, "dwelling")
	if row == nil || row.Status != RowChanged || row.PctChange == nil {
		return nil
	}
	pct := *row.PctChange
	if pct < 0 && -pct > ctx.Config.DwellingChangePct {
		return &CheckResult{
			Field:       "dwelling",
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("Dwelling limit decreased %s (%s to %s)", row.ChangeText, row.BaselineDisplay, row.RenewalDisplay),
			Change:      row.ChangeText,
			AgentAction: "Confirm the insured is not underinsured to rebuild; a reduced Coverage A can void replacement-cost protection.",
		}
	}
	if pct > ctx.Config.DwellingChangePct {
		return &CheckResult{
			Field:       "dwelling",
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("Dwelling limit increased %s (%s to %s)", row.ChangeText, row.BaselineDisplay, row.RenewalDisplay),
			Change:      row.ChangeText,
			AgentAction: "Explain the inflation-guard adjustment and its premium impact to the insured.",
		}
	}
	return nil
}

func checkLiabilityDecrease(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	var dropped []string
	for _, key := range []string{"bodily_injury", "property_damage", "personal_liability"} {
		row := findRow(ctx.Diffs.Coverages, key)
		if row != nil && row.Status == RowChanged && row.Direction == DirectionDown {
			dropped = append(dropped, fmt.Sprintf("%s %s to %s", row.Label, row.BaselineDisplay, row.RenewalDisplay))
		}
	}
	if len(dropped) == 0 {
		return nil
	}
	return &CheckResult{
		Field:       "liability",
		Severity:    SeverityCritical,
		Message:     "Liability limit decreased: " + strings.Join(dropped, "; "),
		Change:      strings.Join(dropped, "; "),
		AgentAction: "Verify the insured requested the reduction; an unrequested liability drop must go back to the carrier.",
	}
}

func checkCoverageRemoved(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	var removed []string
	for _, row := range ctx.Diffs.Coverages {
		if row.Status == RowRemoved {
			removed = append(removed, row.Label)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	return &CheckResult{
		Field:       "coverages.removed",
		Severity:    SeverityCritical,
		Message:     fmt.Sprintf("%d coverage(s) not present on the renewal: %s", len(removed), strings.Join(removed, ", ")),
		Change:      strings.Join(removed, ", "),
		AgentAction: "Confirm each removal was requested; unrequested coverage drops block finalization.",
	}
}

func checkCoverageAdded(ctx *Context) *CheckResult {
	var added []string
	for _, row := range ctx.Diffs.Coverages {
		if row.Status == RowAdded {
			added = append(added, row.Label)
		}
	}
	if len(added) == 0 || ctx.Baseline == nil {
		// Renewal-only mode would mark every coverage added; skip.
		return nil
	}
	return &CheckResult{
		Field:    "coverages.added",
		Severity: SeverityAdded,
		Message:  fmt.Sprintf("New coverage on the renewal: %s", strings.Join(added, ", ")),
		Change:   strings.Join(added, ", "),
	}
}

func checkDeductibleIncrease(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	var increased []string
	for _, row := range ctx.Diffs.Deductibles {
		if row.Status == RowChanged && row.Direction == DirectionUp && row.PctChange != nil && *row.PctChange > ctx.Config.DeductibleIncreasePct {
			increased = append(increased, fmt.Sprintf("%s %s to %s", row.Label, row.BaselineDisplay, row.RenewalDisplay))
		}
	}
	if len(increased) == 0 {
		return nil
	}
	return &CheckResult{
		Field:       "deductible.policy",
		Severity:    SeverityWarning,
		Message:     "Deductible increased: " + strings.Join(increased, "; "),
		Change:      strings.Join(increased, "; "),
		AgentAction: "Make sure the insured understands the higher out-of-pocket exposure at claim time.",
	}
}

func checkVehicleDeductibles(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	var changed []string
	for _, vd := range ctx.Diffs.VehicleDeductibles {
		for _, row := range vd.Rows {
			if row.Status == RowChanged {
				changed = append(changed, fmt.Sprintf("%s %s %s to %s", vd.Label, row.Label, row.BaselineDisplay, row.RenewalDisplay))
			}
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return &CheckResult{
		Field:       "deductible.vehicles",
		Severity:    SeverityWarning,
		Message:     "Per-vehicle deductible changed: " + strings.Join(changed, "; "),
		Change:      strings.Join(changed, "; "),
		AgentAction: "Walk through each vehicle's new deductible with the insured.",
	}
}

func checkVehicleRemoved(ctx *Context) *CheckResult {
	if ctx.Baseline == nil || len(ctx.Diffs.Vehicles.Removed) == 0 {
		return nil
	}
	var labels []string
	for _, v := range ctx.Diffs.Vehicles.Removed {
		labels = append(labels, vehicleLabel(v))
	}
	return &CheckResult{
		Field:       "vehicles.removed",
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("Vehicle(s) no longer on the policy: %s", strings.Join(labels, ", ")),
		Change:      strings.Join(labels, ", "),
		AgentAction: "Confirm each vehicle was sold or intentionally removed.",
	}
}

func checkVehicleAdded(ctx *Context) *CheckResult {
	if ctx.Baseline == nil || len(ctx.Diffs.Vehicles.Added) == 0 {
		return nil
	}
	var labels []string
	for _, v := range ctx.Diffs.Vehicles.Added {
		labels = append(labels, vehicleLabel(v))
	}
	return &CheckResult{
		Field:    "vehicles.added",
		Severity: SeverityAdded,
		Message:  fmt.Sprintf("Vehicle(s) added on the renewal: %s", strings.Join(labels, ", ")),
		Change:   strings.Join(labels, ", "),
	}
}

func checkDriverRemoved(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	missing := missingDrivers(ctx.Baseline.Drivers, ctx.Renewal.Drivers)
	if len(missing) == 0 {
		return nil
	}
	return &CheckResult{
		Field:       "drivers.removed",
		Severity:    SeverityCritical,
		Message:     fmt.Sprintf("Listed driver(s) no longer on the policy: %s", strings.Join(missing, ", ")),
		Change:      strings.Join(missing, ", "),
		AgentAction: "An excluded or dropped driver changes who is covered behind the wheel; confirm with the insured before finalizing.",
	}
}

func checkDriverAdded(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	added := missingDrivers(ctx.Renewal.Drivers, ctx.Baseline.Drivers)
	if len(added) == 0 {
		return nil
	}
	return &CheckResult{
		Field:    "drivers.added",
		Severity: SeverityAdded,
		Message:  fmt.Sprintf("Driver(s) added on the renewal: %s", strings.Join(added, ", ")),
		Change:   strings.Join(added, ", "),
	}
}

// missingDrivers lists drivers in want that have no counterpart in have,
// matched by license number when both carry one, else by name.
func missingDrivers(want, have []snapshot.Driver) []string {
	var missing []string
	for _, w := range want {
		found := false
		for _, h := range have {
			if sameDriver(w, h) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, w.Name)
		}
	}
	return missing
}

func sameDriver(a, b snapshot.Driver) bool {
	if a.LicenseNumber != "" && b.LicenseNumber != "" {
		return strings.EqualFold(strings.TrimSpace(a.LicenseNumber), strings.TrimSpace(b.LicenseNumber))
	}
	return strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name))
}

func checkDiscountRemoved(ctx *Context) *CheckResult {
	if ctx.Baseline == nil || len(ctx.Diffs.Discounts.Removed) == 0 {
		return nil
	}
	var labels []string
	for _, d := range ctx.Diffs.Discounts.Removed {
		labels = append(labels, DiscountLabel(d.Code, d.Description))
	}
	return &CheckResult{
		Field:       "discounts.removed",
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("Discount(s) lost on the renewal: %s", strings.Join(labels, ", ")),
		Change:      strings.Join(labels, ", "),
		AgentAction: "Check whether the lost discount can be re-qualified (paperless enrollment, autopay, updated mileage).",
	}
}

func checkDiscountAdded(ctx *Context) *CheckResult {
	if ctx.Baseline == nil || len(ctx.Diffs.Discounts.Added) == 0 {
		return nil
	}
	var labels []string
	for _, d := range ctx.Diffs.Discounts.Added {
		labels = append(labels, DiscountLabel(d.Code, d.Description))
	}
	return &CheckResult{
		Field:    "discounts.added",
		Severity: SeverityAdded,
		Message:  fmt.Sprintf("New discount(s) on the renewal: %s", strings.Join(labels, ", ")),
		Change:   strings.Join(labels, ", "),
	}
}

func checkPropertyContext(ctx *Context) *CheckResult {
	if ctx.Baseline == nil || ctx.Baseline.Property == nil {
		return nil
	}
	if ctx.Renewal.Property == nil {
		return &CheckResult{
			Field:    "property",
			Severity: SeverityRemoved,
			Message:  "Property context is missing from the renewal snapshot",
		}
	}
	b, r := ctx.Baseline.Property, ctx.Renewal.Property
	var changes []string
	if b.RoofYear != r.RoofYear && r.RoofYear != 0 {
		changes = append(changes, fmt.Sprintf("roof year %d to %d", b.RoofYear, r.RoofYear))
	}
	if b.SquareFeet != r.SquareFeet && r.SquareFeet != 0 {
		changes = append(changes, fmt.Sprintf("square footage %d to %d", b.SquareFeet, r.SquareFeet))
	}
	if b.YearBuilt != r.YearBuilt && r.YearBuilt != 0 {
		changes = append(changes, fmt.Sprintf("year built %d to %d", b.YearBuilt, r.YearBuilt))
	}
	if len(changes) == 0 {
		return nil
	}
	return &CheckResult{
		Field:    "property",
		Severity: SeverityInfo,
		Message:  "Property details changed: " + strings.Join(changes, "; "),
		Change:   strings.Join(changes, "; "),
	}
}

func checkClaimActivity(ctx *Context) *CheckResult {
	if ctx.Baseline == nil {
		return nil
	}
	delta := len(ctx.Renewal.Claims) - len(ctx.Baseline.Claims)
	if delta <= 0 {
		return nil
	}
	return &CheckResult{
		Field:    "claims",
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("%d new claim(s) appear on the renewal term", delta),
		Change:   fmt.Sprintf("%d new claim(s)", delta),
	}
}

func findRow(rows []Row, typeKey string) *Row {
	for i := range rows {
		if rows[i].Type == typeKey {
			return &rows[i]
		}
	}
	return nil
}

func upDown(d Direction) string {
	if d == DirectionUp {
		return "increased"
	}
	return "decreased"
}
