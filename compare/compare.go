package compare

import (
	"errors"

	"github.com/copperkey/renewals/snapshot"
)

// ErrNothingToCompare is returned when no renewal snapshot is supplied.
// It is the only way a comparison can fail outright: every other malformed
// input degrades locally into a smaller but still usable report.
var ErrNothingToCompare = errors.New("nothing to compare: renewal snapshot is required")

// Engine runs the full comparison: validate, match, diff, check, aggregate.
// Pure over its inputs; safe for concurrent use across unrelated renewals.
type Engine struct {
	cfg    Config
	rules  []Rule
	custom *CustomEngine
}

// NewEngine creates a comparison engine with the fixed built-in rule set.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		rules: builtinRules(),
	}
}

// WithCustomRules attaches an agency custom-rule engine evaluated after the
// built-in set.
func (e *Engine) WithCustomRules(ce *CustomEngine) *Engine {
	e.custom = ce
	return e
}

// Compare produces the change report for a snapshot pair. baseline may be
// nil: the report degrades to renewal-only mode, baseline-dependent rules
// are skipped (never treated as errors) and BaselineStatus says so.
func (e *Engine) Compare(baseline, renewal *snapshot.Snapshot) (*Report, error) {
	if renewal == nil {
		return nil, ErrNothingToCompare
	}

	var notes []string
	for _, n := range snapshot.Validate(baseline) {
		notes = append(notes, "baseline: "+n)
	}
	for _, n := range snapshot.Validate(renewal) {
		notes = append(notes, "renewal: "+n)
	}

	diffs := BuildDiffSet(baseline, renewal)

	ctx := &Context{
		Baseline: baseline,
		Renewal:  renewal,
		Diffs:    diffs,
		Config:   e.cfg,
	}
	results := evaluateRules(e.rules, ctx)

	if e.custom != nil {
		customResults, err := e.custom.EvaluateAll(buildFacts(baseline, renewal, diffs))
		if err != nil {
			// A store outage must not take the whole comparison down;
			// degrade to the built-in results and say so.
			notes = append(notes, "custom checks unavailable: "+err.Error())
		} else {
			results = append(results, customResults...)
		}
	}

	summary, material, checkSummary := Aggregate(results, baseline)

	if results == nil {
		results = []CheckResult{}
	}
	if material == nil {
		material = []MaterialChange{}
	}
	if checkSummary.BlockerRuleIDs == nil {
		checkSummary.BlockerRuleIDs = []string{}
	}

	return &Report{
		CheckResults:      results,
		CheckSummary:      checkSummary,
		MaterialChanges:   material,
		ComparisonSummary: summary,
		Notes:             notes,
	}, nil
}

// buildFacts flattens the comparison into the dynamic maps the custom-rule
// CEL environment declares: Baseline, Renewal, Diff.
func buildFacts(baseline, renewal *snapshot.Snapshot, diffs *DiffSet) map[string]any {
	premiumPct := 0.0
	premiumChanged := false
	if diffs.Premium != nil && diffs.Premium.PctChange != nil {
		premiumPct = *diffs.Premium.PctChange
		premiumChanged = diffs.Premium.Status == RowChanged
	}

	var covAdded, covRemoved, covChanged int
	for _, row := range diffs.Coverages {
		switch row.Status {
		case RowAdded:
			covAdded++
		case RowRemoved:
			covRemoved++
		case RowChanged:
			covChanged++
		}
	}

	return map[string]any{
		"Baseline": snapshotFacts(baseline),
		"Renewal":  snapshotFacts(renewal),
		"Diff": map[string]any{
			"premiumChangePct": premiumPct,
			"premiumChanged":   premiumChanged,
			"coveragesAdded":   covAdded,
			"coveragesRemoved": covRemoved,
			"coveragesChanged": covChanged,
			"vehiclesAdded":    len(diffs.Vehicles.Added),
			"vehiclesRemoved":  len(diffs.Vehicles.Removed),
			"vehiclesPaired":   len(diffs.Vehicles.Paired),
			"discountsAdded":   len(diffs.Discounts.Added),
			"discountsRemoved": len(diffs.Discounts.Removed),
		},
	}
}

func snapshotFacts(s *snapshot.Snapshot) map[string]any {
	if s == nil {
		return map[string]any{"present": false}
	}
	totalPremium := 0.0
	if s.TotalPremium != nil {
		totalPremium = *s.TotalPremium
	}
	return map[string]any{
		"present":       true,
		"carrier":       s.Carrier,
		"policyType":    s.PolicyType,
		"totalPremium":  totalPremium,
		"coverageCount": len(s.Coverages),
		"vehicleCount":  len(s.Vehicles),
		"driverCount":   len(s.Drivers),
		"discountCount": len(s.Discounts),
		"claimCount":    len(s.Claims),
	}
}
