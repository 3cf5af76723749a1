package compare

import (
	"fmt"

	"github.com/copperkey/renewals/snapshot"
)

// Aggregate reduces classified check results into the summary views the
// review surface renders. MaterialChanges are derived, never independently
// authored; PipelineHalted is a pure function of the blocker set.
func Aggregate(results []CheckResult, baseline *snapshot.Snapshot) (ComparisonSummary, []MaterialChange, CheckSummary) {
	var material []MaterialChange
	var blockers []string

	for _, res := range results {
		switch res.Severity {
		case SeverityCritical, SeverityWarning:
			material = append(material, MaterialChange{
				Classification: MaterialNegative,
				Description:    res.Message,
			})
		case SeverityAdded:
			material = append(material, MaterialChange{
				Classification: MaterialPositive,
				Description:    res.Message,
			})
		}
		if res.Blocking {
			blockers = append(blockers, res.RuleID)
		}
	}

	summary := ComparisonSummary{
		BaselineStatus: baselineStatus(baseline),
		Headline:       headline(results, len(material)),
	}

	check := CheckSummary{
		PipelineHalted: len(blockers) > 0,
		BlockerRuleIDs: blockers,
	}

	return summary, material, check
}

func baselineStatus(baseline *snapshot.Snapshot) BaselineStatus {
	switch {
	case baseline == nil:
		return BaselineNone
	case baseline.CapturedFrom == snapshot.TermCurrent:
		return BaselineCurrent
	default:
		return BaselinePrior
	}
}

// headline synthesizes the dominant premium movement and the count of
// material changes. With no premium-category result at all, the headline
// is omitted and the material-change sections stand alone.
func headline(results []CheckResult, materialCount int) string {
	var premium *CheckResult
	for i := range results {
		if results[i].Category == CategoryPremium && results[i].Field == "premium.total" {
			premium = &results[i]
			break
		}
	}
	if premium == nil {
		return ""
	}

	changes := "no material changes"
	switch materialCount {
	case 1:
		changes = "1 material change"
	default:
		if materialCount > 1 {
			changes = fmt.Sprintf("%d material changes", materialCount)
		}
	}

	if premium.Severity == SeverityUnchanged {
		return fmt.Sprintf("Premium is unchanged with %s to review.", changes)
	}
	return fmt.Sprintf("%s; %s to review.", premium.Change, changes)
}
