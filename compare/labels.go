package compare

import "strings"

// Human label tables consumed by the engine for messages and by the
// presentation layer for table headings. Kept as data, not logic, so both
// sides read from one place.

var coverageLabels = map[string]string{
	"dwelling":              "Dwelling (Coverage A)",
	"other_structures":      "Other Structures (Coverage B)",
	"personal_property":     "Personal Property (Coverage C)",
	"loss_of_use":           "Loss of Use (Coverage D)",
	"personal_liability":    "Personal Liability (Coverage E)",
	"medical_payments":      "Medical Payments",
	"bodily_injury":         "Bodily Injury Liability",
	"property_damage":       "Property Damage Liability",
	"collision":             "Collision",
	"comprehensive":         "Comprehensive",
	"uninsured_motorist":    "Uninsured Motorist",
	"underinsured_motorist": "Underinsured Motorist",
	"rental_reimbursement":  "Rental Reimbursement",
	"roadside_assistance":   "Roadside Assistance",
	"all_peril":             "All Peril Deductible",
	"wind_hail":             "Wind/Hail Deductible",
}

var discountLabels = map[string]string{
	"paperless_discount": "Paperless Billing",
	"multi_policy":       "Multi-Policy",
	"multi_car":          "Multi-Car",
	"safe_driver":        "Safe Driver",
	"good_student":       "Good Student",
	"claims_free":        "Claims Free",
	"protective_devices": "Protective Devices",
	"new_home":           "New Home",
	"early_quote":        "Early Quote",
	"autopay":            "Automatic Payment",
}

// CoverageLabel returns the display label for a canonical coverage type,
// falling back to a title-cased rendering of the key.
func CoverageLabel(typeKey string) string {
	if label, ok := coverageLabels[typeKey]; ok {
		return label
	}
	return titleFromKey(typeKey)
}

// DiscountLabel returns the display label for a discount, preferring the
// code table, then the raw description.
func DiscountLabel(code, description string) string {
	if label, ok := discountLabels[code]; ok {
		return label
	}
	if description != "" {
		return description
	}
	return titleFromKey(code)
}

func titleFromKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
