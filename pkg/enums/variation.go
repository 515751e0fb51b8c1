package enums

// VariationCategory is the product attribute dimension a variation belongs to.
type VariationCategory string

const (
	VariationColor VariationCategory = "color"
	VariationSize  VariationCategory = "size"
)

var variationCategories = set[VariationCategory]{VariationColor, VariationSize}

// String implements fmt.Stringer.
func (v VariationCategory) String() string {
	return string(v)
}

func (v VariationCategory) IsValid() bool { return variationCategories.has(v) }

// ParseVariationCategory converts raw input into a VariationCategory.
func ParseVariationCategory(value string) (VariationCategory, error) {
	return variationCategories.parse("variation category", value, false)
}
