package boq

import "strings"

// unitSynonyms maps the unit spellings the reasoning service tends to emit
// onto the canonical forms the pricing stage queries with.
var unitSynonyms = map[string]string{
	"sheets":       "sheet",
	"bags":         "bag",
	"sqm":          "m²",
	"sq.m":         "m²",
	"sq m":         "m²",
	"sq. m":        "m²",
	"square meter": "m²",
	"square meters": "m²",
	"cubic meter":  "m³",
	"cubic meters": "m³",
	"cu.m":         "m³",
	"cu m":         "m³",
	"bd ft":        "board ft",
	"board feet":   "board ft",
	"board foot":   "board ft",
	"pieces":       "pcs",
	"piece":        "pcs",
	"pc":           "pcs",
	"meters":       "m",
	"meter":        "m",
	"metres":       "m",
	"metre":        "m",
	"kgs":          "kg",
	"kg.":          "kg",
	"kilogram":     "kg",
	"kilograms":    "kg",
	"tubes":        "tube",
}

// CanonicalUnit lower-cases and trims a raw unit string and folds known
// synonyms onto one canonical spelling. Unrecognized units pass through
// unchanged after normalization.
func CanonicalUnit(raw string) string {
	unit := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := unitSynonyms[unit]; ok {
		return canonical
	}
	return unit
}
