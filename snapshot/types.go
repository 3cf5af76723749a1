package snapshot

// BaselineTerm says which policy term a baseline snapshot was captured from.
// A baseline built from the current (about-to-expire) term data is a weaker
// comparison than a true prior-term archive and is flagged as such downstream.
type BaselineTerm string

const (
	TermPrior   BaselineTerm = "prior_term"
	TermCurrent BaselineTerm = "current_term"
)

// Coverage is one coverage line in a canonical snapshot. At least one of
// LimitAmount, Limit, DeductibleAmount or Premium is present on any coverage
// that exists at all; the extraction pipeline guarantees this and Validate
// reports violations as data-quality notes.
type Coverage struct {
	Type             string   `json:"type"`
	LimitAmount      *float64 `json:"limitAmount,omitempty"`
	Limit            string   `json:"limit,omitempty"`
	DeductibleAmount *float64 `json:"deductibleAmount,omitempty"`
	Premium          *float64 `json:"premium,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Vehicle is one vehicle on an auto policy.
type Vehicle struct {
	VIN       string     `json:"vin,omitempty"`
	Year      int        `json:"year"`
	Make      string     `json:"make"`
	Model     string     `json:"model,omitempty"`
	Coverages []Coverage `json:"coverages,omitempty"`
}

// Driver is one listed driver on an auto policy.
type Driver struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
}

// Discount is one applied discount. At least one of Code or Description
// is non-empty.
type Discount struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Claim is one historical claim attached to the policy.
type Claim struct {
	Date   string   `json:"date,omitempty"`
	Type   string   `json:"type,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
	Status string   `json:"status,omitempty"`
}

// Insured holds the named-insured identity and mailing address fields.
type Insured struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// PropertyContext carries home-policy dwelling facts. Nil on auto policies.
type PropertyContext struct {
	YearBuilt  int    `json:"yearBuilt,omitempty"`
	RoofYear   int    `json:"roofYear,omitempty"`
	SquareFeet int    `json:"squareFeet,omitempty"`
	Style      string `json:"style,omitempty"`
}

// Snapshot is a normalized policy-term representation produced by the
// extraction pipeline. Immutable once produced; the comparison engine never
// writes to it.
type Snapshot struct {
	Carrier      string           `json:"carrier,omitempty"`
	PolicyNumber string           `json:"policyNumber,omitempty"`
	PolicyType   string           `json:"policyType,omitempty"` // "auto" or "home"
	CapturedFrom BaselineTerm     `json:"capturedFrom,omitempty"`
	Insured      Insured          `json:"insured"`
	TotalPremium *float64         `json:"totalPremium,omitempty"`
	Coverages    []Coverage       `json:"coverages,omitempty"`
	Vehicles     []Vehicle        `json:"vehicles,omitempty"`
	Drivers      []Driver         `json:"drivers,omitempty"`
	Discounts    []Discount       `json:"discounts,omitempty"`
	Claims       []Claim          `json:"claims,omitempty"`
	Property     *PropertyContext `json:"propertyContext,omitempty"`
}

// HasValue reports whether the coverage carries any comparable value field.
func (c Coverage) HasValue() bool {
	return c.LimitAmount != nil || c.Limit != "" || c.DeductibleAmount != nil || c.Premium != nil
}

// Key returns the taxonomy key a discount is matched by: the code when
// present, otherwise the description.
func (d Discount) Key() string {
	if d.Code != "" {
		return d.Code
	}
	return d.Description
}
