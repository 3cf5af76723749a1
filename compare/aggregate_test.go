package compare

import (
	"strings"
	"testing"

	"github.com/copperkey/renewals/snapshot"
)

// TestAggregateMaterialChanges verifies the derivation: critical/warning
// become material_negative, added becomes material_positive, unchanged and
// info never produce a talking point.
func TestAggregateMaterialChanges(t *testing.T) {
	results := []CheckResult{
		{RuleID: "a", Field: "x", Severity: SeverityCritical, Message: "coverage dropped"},
		{RuleID: "b", Field: "y", Severity: SeverityWarning, Message: "discount lost"},
		{RuleID: "c", Field: "z", Severity: SeverityAdded, Message: "new discount"},
		{RuleID: "d", Field: "w", Severity: SeverityUnchanged, Message: "no change"},
		{RuleID: "e", Field: "v", Severity: SeverityInfo, Message: "fyi"},
	}

	_, material, _ := Aggregate(results, &snapshot.Snapshot{})

	if len(material) != 3 {
		t.Fatalf("material changes = %d, want 3", len(material))
	}

	var neg, pos int
	for _, m := range material {
		switch m.Classification {
		case MaterialNegative:
			neg++
		case MaterialPositive:
			pos++
		}
	}
	if neg != 2 || pos != 1 {
		t.Errorf("negative = %d positive = %d, want 2/1", neg, pos)
	}
}

// TestAggregateBlockerInvariant verifies pipelineHalted is true exactly
// when the blocker list is non-empty.
func TestAggregateBlockerInvariant(t *testing.T) {
	_, _, check := Aggregate([]CheckResult{
		{RuleID: "quiet", Field: "x", Severity: SeverityWarning},
	}, nil)
	if check.PipelineHalted || len(check.BlockerRuleIDs) != 0 {
		t.Errorf("no blockers: %+v, want not halted", check)
	}

	_, _, check = Aggregate([]CheckResult{
		{RuleID: "stopper", Field: "x", Severity: SeverityCritical, Blocking: true},
	}, nil)
	if !check.PipelineHalted {
		t.Error("a blocking result must halt the pipeline")
	}
	if len(check.BlockerRuleIDs) != 1 || check.BlockerRuleIDs[0] != "stopper" {
		t.Errorf("BlockerRuleIDs = %v, want [stopper]", check.BlockerRuleIDs)
	}
	if check.PipelineHalted != (len(check.BlockerRuleIDs) > 0) {
		t.Error("pipelineHalted must equal len(blockerRuleIds) > 0")
	}
}

// TestAggregateBaselineStatus covers the three baseline states.
func TestAggregateBaselineStatus(t *testing.T) {
	testCases := []struct {
		name     string
		baseline *snapshot.Snapshot
		want     BaselineStatus
	}{
		{"absent baseline", nil, BaselineNone},
		{"current term capture", &snapshot.Snapshot{CapturedFrom: snapshot.TermCurrent}, BaselineCurrent},
		{"prior term archive", &snapshot.Snapshot{CapturedFrom: snapshot.TermPrior}, BaselinePrior},
		{"unspecified defaults to prior term", &snapshot.Snapshot{}, BaselinePrior},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			summary, _, _ := Aggregate(nil, tc.baseline)
			if summary.BaselineStatus != tc.want {
				t.Errorf("BaselineStatus = %s, want %s", summary.BaselineStatus, tc.want)
			}
		})
	}
}

// TestAggregateHeadline verifies the headline synthesizes the premium
// movement and material-change count, and is omitted entirely without a
// premium-category result.
func TestAggregateHeadline(t *testing.T) {
	summary, _, _ := Aggregate([]CheckResult{
		{
			RuleID: "premium_change", Field: "premium.total",
			Category: CategoryPremium, Severity: SeverityWarning,
			Change: "Total premium increased to $2,250 (+12.5%)",
		},
		{RuleID: "discount_removed", Field: "discounts.removed", Severity: SeverityWarning, Message: "lost"},
	}, &snapshot.Snapshot{})

	if summary.Headline == "" {
		t.Fatal("headline omitted despite a premium result")
	}
	if !strings.Contains(summary.Headline, "+12.5%") {
		t.Errorf("headline %q should carry the premium change", summary.Headline)
	}
	if !strings.Contains(summary.Headline, "2 material changes") {
		t.Errorf("headline %q should count the material changes", summary.Headline)
	}

	summary, _, _ = Aggregate([]CheckResult{
		{RuleID: "discount_removed", Field: "discounts.removed", Severity: SeverityWarning, Message: "lost"},
	}, &snapshot.Snapshot{})
	if summary.Headline != "" {
		t.Errorf("headline = %q, want omitted without a premium result", summary.Headline)
	}
}
