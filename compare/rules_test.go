package compare

import (
	"strings"
	"testing"

	"github.com/copperkey/renewals/snapshot"
)

func autoContext(baseline, renewal *snapshot.Snapshot) *Context {
	return &Context{
		Baseline: baseline,
		Renewal:  renewal,
		Diffs:    BuildDiffSet(baseline, renewal),
		Config:   DefaultConfig(),
	}
}

func findResult(results []CheckResult, ruleID string) *CheckResult {
	for i := range results {
		if results[i].RuleID == ruleID {
			return &results[i]
		}
	}
	return nil
}

// TestDwellingIncreaseFiresWarning verifies the dwelling scenario: a
// $300,000 to $330,000 move (+10.0%) against a 5% threshold fires a
// warning with a premium-impact agent action.
func TestDwellingIncreaseFiresWarning(t *testing.T) {
	baseline := &snapshot.Snapshot{
		PolicyType: "home",
		Coverages:  []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(300000)}},
	}
	renewal := &snapshot.Snapshot{
		PolicyType: "home",
		Coverages:  []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(330000)}},
	}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	res := findResult(results, "dwelling_limit_change")
	if res == nil {
		t.Fatal("dwelling_limit_change did not fire")
	}
	if res.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", res.Severity)
	}
	if !strings.Contains(res.Message, "+10.0%") {
		t.Errorf("message %q should carry the +10.0%% change", res.Message)
	}
	if !strings.Contains(res.AgentAction, "premium") {
		t.Errorf("agentAction %q should mention the premium impact", res.AgentAction)
	}
	if res.Blocking {
		t.Error("a dwelling increase warning must not block the pipeline")
	}
}

// TestDwellingDecreaseBlocks verifies a dwelling decrease beyond threshold
// is critical and blocking.
func TestDwellingDecreaseBlocks(t *testing.T) {
	baseline := &snapshot.Snapshot{
		Coverages: []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(300000)}},
	}
	renewal := &snapshot.Snapshot{
		Coverages: []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(250000)}},
	}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	res := findResult(results, "dwelling_limit_change")
	if res == nil {
		t.Fatal("dwelling_limit_change did not fire")
	}
	if res.Severity != SeverityCritical || !res.Blocking {
		t.Errorf("got severity %s blocking %v, want critical blocking", res.Severity, res.Blocking)
	}
}

// TestPremiumThresholds exercises the premium rule against the named
// config thresholds.
func TestPremiumThresholds(t *testing.T) {
	testCases := []struct {
		name         string
		baseline     float64
		renewal      float64
		wantSeverity Severity
	}{
		{"unchanged", 2000, 2000, SeverityUnchanged},
		{"small increase is info", 2000, 2100, SeverityInfo},
		{"above warn threshold", 2000, 2250, SeverityWarning},
		{"above critical threshold", 2000, 2600, SeverityCritical},
		{"decrease is info", 2000, 1800, SeverityInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			baseline := &snapshot.Snapshot{TotalPremium: f(tc.baseline)}
			renewal := &snapshot.Snapshot{TotalPremium: f(tc.renewal)}

			results := evaluateRules(builtinRules(), autoContext(baseline, renewal))
			res := findResult(results, "premium_change")
			if res == nil {
				t.Fatal("premium_change did not fire")
			}
			if res.Severity != tc.wantSeverity {
				t.Errorf("severity = %s, want %s", res.Severity, tc.wantSeverity)
			}
		})
	}
}

// TestUnexplainedPremiumIncrease verifies the rule fires only when no
// coverage movement explains the increase.
func TestUnexplainedPremiumIncrease(t *testing.T) {
	baseline := &snapshot.Snapshot{
		TotalPremium: f(2000),
		Coverages:    []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(300000)}},
	}
	renewal := &snapshot.Snapshot{
		TotalPremium: f(2400),
		Coverages:    []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(300000)}},
	}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))
	if res := findResult(results, "unexplained_premium_increase"); res == nil || res.Severity != SeverityWarning {
		t.Fatalf("unexplained_premium_increase = %+v, want a warning", res)
	}

	// Same premium movement but with a coverage change to explain it.
	renewal.Coverages = []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(350000)}}
	results = evaluateRules(builtinRules(), autoContext(baseline, renewal))
	if res := findResult(results, "unexplained_premium_increase"); res != nil {
		t.Errorf("rule fired despite a coverage change: %+v", res)
	}
}

// TestDiscountRemovedWarns verifies a lost discount fires a warning so it
// surfaces as a material_negative talking point.
func TestDiscountRemovedWarns(t *testing.T) {
	baseline := &snapshot.Snapshot{
		Discounts: []snapshot.Discount{{Code: "paperless_discount"}},
	}
	renewal := &snapshot.Snapshot{}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	res := findResult(results, "discount_removed")
	if res == nil {
		t.Fatal("discount_removed did not fire")
	}
	if res.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", res.Severity)
	}
	if !strings.Contains(res.Message, "Paperless Billing") {
		t.Errorf("message %q should carry the discount label", res.Message)
	}
}

// TestDriverRemovedIsCriticalBlocker verifies a dropped listed driver is
// critical and blocks the pipeline.
func TestDriverRemovedIsCriticalBlocker(t *testing.T) {
	baseline := &snapshot.Snapshot{
		Drivers: []snapshot.Driver{{Name: "Jordan Ellis"}, {Name: "Casey Ellis"}},
	}
	renewal := &snapshot.Snapshot{
		Drivers: []snapshot.Driver{{Name: "Jordan Ellis"}},
	}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	res := findResult(results, "driver_removed")
	if res == nil {
		t.Fatal("driver_removed did not fire")
	}
	if res.Severity != SeverityCritical || !res.Blocking {
		t.Errorf("got severity %s blocking %v, want critical blocking", res.Severity, res.Blocking)
	}
	if !strings.Contains(res.Message, "Casey Ellis") {
		t.Errorf("message %q should name the missing driver", res.Message)
	}
}

// TestVehicleRules verifies added and removed vehicles produce their own
// results.
func TestVehicleRules(t *testing.T) {
	baseline := &snapshot.Snapshot{Vehicles: []snapshot.Vehicle{
		{VIN: "OLD", Year: 2014, Make: "Dodge", Model: "Charger"},
	}}
	renewal := &snapshot.Snapshot{Vehicles: []snapshot.Vehicle{
		{VIN: "NEW", Year: 2025, Make: "Rivian", Model: "R1T"},
	}}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	if res := findResult(results, "vehicle_removed"); res == nil || res.Severity != SeverityWarning {
		t.Errorf("vehicle_removed = %+v, want a warning", res)
	}
	if res := findResult(results, "vehicle_added"); res == nil || res.Severity != SeverityAdded {
		t.Errorf("vehicle_added = %+v, want added", res)
	}
}

// TestBaselineDependentRulesSkipWithoutBaseline verifies no
// baseline-dependent rule produces a critical/warning result in
// renewal-only mode.
func TestBaselineDependentRulesSkipWithoutBaseline(t *testing.T) {
	renewal := &snapshot.Snapshot{
		TotalPremium: f(2400),
		Coverages:    []snapshot.Coverage{{Type: "dwelling", LimitAmount: f(300000)}},
		Vehicles:     []snapshot.Vehicle{{VIN: "X", Year: 2020, Make: "Ford", Model: "Escape"}},
		Discounts:    []snapshot.Discount{{Code: "autopay"}},
		Drivers:      []snapshot.Driver{{Name: "Jordan Ellis"}},
	}

	results := evaluateRules(builtinRules(), autoContext(nil, renewal))

	for _, res := range results {
		if res.Severity == SeverityCritical || res.Severity == SeverityWarning {
			t.Errorf("rule %s fired %s without a baseline", res.RuleID, res.Severity)
		}
	}
}

// TestRuleIsolation verifies a panicking rule is converted to an
// info-severity diagnostic result while every other rule still evaluates.
func TestRuleIsolation(t *testing.T) {
	rules := []Rule{
		{ID: "exploding_rule", Category: CategoryPremium, Check: func(*Context) *CheckResult {
			panic("boom")
		}},
		{ID: "healthy_rule", Category: CategoryCoverages, Check: func(*Context) *CheckResult {
			return &CheckResult{Field: "ok", Severity: SeverityInfo, Message: "fine"}
		}},
	}

	results := evaluateRules(rules, autoContext(&snapshot.Snapshot{}, &snapshot.Snapshot{}))

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	diag := findResult(results, "exploding_rule")
	if diag == nil {
		t.Fatal("no diagnostic result for the failed rule")
	}
	if diag.Severity != SeverityInfo || diag.Field != "diagnostic" {
		t.Errorf("diagnostic = %+v, want info severity on the diagnostic field", diag)
	}
	if !strings.Contains(diag.Message, "boom") {
		t.Errorf("diagnostic message %q should carry the failure", diag.Message)
	}

	if res := findResult(results, "healthy_rule"); res == nil {
		t.Error("healthy rule did not evaluate after the failure")
	}
}

// TestResultKeyUniqueness verifies the (ruleId, field) pair is unique
// across a full built-in evaluation.
func TestResultKeyUniqueness(t *testing.T) {
	baseline := &snapshot.Snapshot{
		TotalPremium: f(2000),
		Coverages: []snapshot.Coverage{
			{Type: "dwelling", LimitAmount: f(300000)},
			{Type: "personal_liability", LimitAmount: f(500000)},
		},
		Discounts: []snapshot.Discount{{Code: "paperless_discount"}},
		Drivers:   []snapshot.Driver{{Name: "A"}, {Name: "B"}},
		Vehicles:  []snapshot.Vehicle{{VIN: "V1", Year: 2019, Make: "Honda", Model: "Accord"}},
	}
	renewal := &snapshot.Snapshot{
		TotalPremium: f(2600),
		Coverages: []snapshot.Coverage{
			{Type: "dwelling", LimitAmount: f(250000)},
			{Type: "personal_liability", LimitAmount: f(300000)},
			{Type: "water_backup", LimitAmount: f(5000)},
		},
		Drivers:  []snapshot.Driver{{Name: "A"}},
		Vehicles: []snapshot.Vehicle{{VIN: "V2", Year: 2024, Make: "Tesla", Model: "Model 3"}},
	}

	results := evaluateRules(builtinRules(), autoContext(baseline, renewal))

	seen := make(map[string]bool)
	for _, res := range results {
		key := res.RuleID + "/" + res.Field
		if seen[key] {
			t.Errorf("duplicate (ruleId, field) key %s", key)
		}
		seen[key] = true
	}
}
