package compare

import "github.com/copperkey/renewals/snapshot"

// Severity classifies a single check result. Severity is rule-owned: the
// rule author decides what its condition means, the engine never infers
// severity from a raw percentage.
type Severity string

const (
	SeverityCritical  Severity = "critical"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
	SeverityUnchanged Severity = "unchanged"
	SeverityAdded     Severity = "added"
	SeverityRemoved   Severity = "removed"
)

// Category buckets a check result for the review surface.
type Category string

const (
	CategoryPremium      Category = "Premium"
	CategoryCoverages    Category = "Coverages"
	CategoryDeductibles  Category = "Deductibles"
	CategoryDrivers      Category = "Drivers"
	CategoryVehicles     Category = "Vehicles"
	CategoryEndorsements Category = "Endorsements"
	CategoryProperty     Category = "Property"
)

// CheckResult is one classified finding from a check rule. The
// (RuleID, Field) pair is unique within one comparison result set.
// Reviewed is never computed here; it is joined in from the review store.
type CheckResult struct {
	RuleID      string   `json:"ruleId"`
	Field       string   `json:"field"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Change      string   `json:"change,omitempty"`
	AgentAction string   `json:"agentAction,omitempty"`
	Blocking    bool     `json:"blocking,omitempty"`
	Reviewed    bool     `json:"reviewed"`
}

// CheckSummary carries the aggregate blocking signal. PipelineHalted is
// always len(BlockerRuleIDs) > 0, never independently settable.
type CheckSummary struct {
	PipelineHalted bool     `json:"pipelineHalted"`
	BlockerRuleIDs []string `json:"blockerRuleIds"`
}

// MaterialClassification labels a material change as a talking point.
type MaterialClassification string

const (
	MaterialNegative MaterialClassification = "material_negative"
	MaterialPositive MaterialClassification = "material_positive"
)

// MaterialChange is a human-facing talking point derived from check
// results; never independently authored.
type MaterialChange struct {
	Classification MaterialClassification `json:"classification"`
	Description    string                 `json:"description"`
}

// BaselineStatus says how trustworthy the baseline side of a comparison is.
type BaselineStatus string

const (
	BaselineNone    BaselineStatus = "no_baseline"
	BaselineCurrent BaselineStatus = "current_term"
	BaselinePrior   BaselineStatus = "prior_term"
)

// ComparisonSummary is the headline view of a comparison. Headline is empty
// when no premium-category result exists.
type ComparisonSummary struct {
	Headline       string         `json:"headline,omitempty"`
	BaselineStatus BaselineStatus `json:"baselineStatus"`
}

// Report is the full output of one comparison run. Derived on demand from
// the snapshot pair; recomputed whenever either snapshot changes.
type Report struct {
	CheckResults      []CheckResult     `json:"checkResults"`
	CheckSummary      CheckSummary      `json:"checkSummary"`
	MaterialChanges   []MaterialChange  `json:"materialChanges"`
	ComparisonSummary ComparisonSummary `json:"comparisonSummary"`
	Notes             []string          `json:"notes,omitempty"`
}

// RowStatus classifies one diff row.
type RowStatus string

const (
	RowAdded     RowStatus = "added"
	RowRemoved   RowStatus = "removed"
	RowChanged   RowStatus = "changed"
	RowUnchanged RowStatus = "unchanged"
)

// Direction is the sign of a numeric change. The diff layer only signals
// magnitude and direction; rules assign the actual severity semantics.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// Row is one field-level diff row for a coverage, deductible or premium
// value matched by taxonomy key across the two snapshots.
type Row struct {
	Type            string    `json:"type"`
	Label           string    `json:"label"`
	BaselineDisplay string    `json:"baselineValue"`
	RenewalDisplay  string    `json:"renewalValue"`
	BaselineAmount  *float64  `json:"baselineAmount,omitempty"`
	RenewalAmount   *float64  `json:"renewalAmount,omitempty"`
	Status          RowStatus `json:"status"`
	Direction       Direction `json:"direction"`
	PctChange       *float64  `json:"pctChange,omitempty"`
	ChangeText      string    `json:"changeText"`
}

// DiscountDiff buckets discounts by normalized code.
type DiscountDiff struct {
	Kept    []snapshot.Discount `json:"kept"`
	Added   []snapshot.Discount `json:"added"`
	Removed []snapshot.Discount `json:"removed"`
}

// VehicleDeductibles scopes deductible rows to one matched vehicle.
type VehicleDeductibles struct {
	VIN   string `json:"vin,omitempty"`
	Label string `json:"label"`
	Rows  []Row  `json:"rows"`
}

// DiffSet is everything the diff layer hands to the rules.
type DiffSet struct {
	Coverages          []Row                                          `json:"coverages"`
	Deductibles        []Row                                          `json:"deductibles"`
	VehicleDeductibles []VehicleDeductibles                           `json:"vehicleDeductibles,omitempty"`
	Discounts          DiscountDiff                                   `json:"discounts"`
	Vehicles           MatchResult[snapshot.Vehicle, snapshot.Vehicle] `json:"vehicles"`
	Premium            *Row                                           `json:"premium,omitempty"`
}
