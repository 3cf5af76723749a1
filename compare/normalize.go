package compare

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// CarrierProfile canonicalizes one carrier's coverage-type vocabulary.
// Carriers key the same coverage differently across declarations pages
// ("bi", "bodily injury", "coverage_a"); the profile maps those aliases
// onto the canonical taxonomy so the diff layer joins on one key space.
type CarrierProfile struct {
	Name        string
	TypeAliases map[string]string
}

// defaultAliases cover the vocabulary shared by most personal-lines
// carriers; carrier profiles layer their quirks on top.
var defaultAliases = map[string]string{
	"bi":                        "bodily_injury",
	"bodily_injury_liability":   "bodily_injury",
	"pd":                        "property_damage",
	"property_damage_liability": "property_damage",
	"comp":                      "comprehensive",
	"otc":                       "comprehensive",
	"coll":                      "collision",
	"um":                        "uninsured_motorist",
	"uim":                       "underinsured_motorist",
	"coverage_a":                "dwelling",
	"dwelling_coverage":         "dwelling",
	"coverage_b":                "other_structures",
	"coverage_c":                "personal_property",
	"coverage_d":                "loss_of_use",
	"coverage_e":                "personal_liability",
	"coverage_f":                "medical_payments",
	"med_pay":                   "medical_payments",
	"rental":                    "rental_reimbursement",
	"towing":                    "roadside_assistance",
}

type profileRegistry struct {
	profiles map[string]*CarrierProfile
	mu       sync.RWMutex
}

var registry = &profileRegistry{profiles: make(map[string]*CarrierProfile)}

// RegisterCarrierProfile installs or replaces a carrier profile. Carrier
// names are matched case-insensitively.
func RegisterCarrierProfile(p *CarrierProfile) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.profiles[strings.ToLower(p.Name)] = p
}

func lookupProfile(carrier string) *CarrierProfile {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.profiles[strings.ToLower(carrier)]
}

// CanonicalType normalizes a raw coverage type key for a given carrier:
// lowercased, trimmed, spaces and dashes folded to underscores, then mapped
// through the carrier's alias table and the shared default table.
func CanonicalType(carrier, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	if p := lookupProfile(carrier); p != nil {
		if canonical, ok := p.TypeAliases[key]; ok {
			return canonical
		}
	}
	if canonical, ok := defaultAliases[key]; ok {
		return canonical
	}
	return key
}

// normalizeDiscountKey matches discounts by lowercased, trimmed code,
// falling back to the description when the code is absent.
func normalizeDiscountKey(code, description string) string {
	key := strings.ToLower(strings.TrimSpace(code))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(description))
	}
	return key
}

// parseLimit parses a carrier's raw limit string into a number. Currency
// symbols, commas and leading zeros are stripped before an integer parse.
// A non-numeric string reports ok=false and the caller falls back to a
// textual comparison for that field only.
func parseLimit(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		// All zeros is still a numeric zero.
		return 0, true
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// formatAmount renders a numeric value the way declarations pages do.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return "$" + groupThousands(strconv.FormatInt(int64(v), 10))
	}
	return "$" + groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// formatPct renders a signed percentage with one decimal place.
func formatPct(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}
