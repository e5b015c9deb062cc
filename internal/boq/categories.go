package boq

// The seven cost categories every AI-generated line must carry, in report
// order. Generated rows with any other category string are dropped.
const (
	CategoryEarthwork = "EARTHWORK"
	CategoryFormwork  = "FORMWORK & SCAFFOLDING"
	CategoryMasonry   = "MASONRY WORK"
	CategoryConcrete  = "CONCRETE WORK"
	CategorySteelwork = "STEELWORK"
	CategoryCarpentry = "CARPENTRY WORK"
	CategoryRoofing   = "ROOFING WORK"
)

var CategoryOrder = []string{
	CategoryEarthwork,
	CategoryFormwork,
	CategoryMasonry,
	CategoryConcrete,
	CategorySteelwork,
	CategoryCarpentry,
	CategoryRoofing,
}

var validCategories = func() map[string]bool {
	m := make(map[string]bool, len(CategoryOrder))
	for _, c := range CategoryOrder {
		m[c] = true
	}
	return m
}()

func ValidCategory(category string) bool {
	return validCategories[category]
}
