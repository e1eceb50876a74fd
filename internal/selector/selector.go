// Package selector implements the tagged-union locators described in
// spec.md §3 and §9: Selector, Target, and SwipeRequest. These are modeled
// as plain Go structs with a discriminating Kind field and exhaustive
// switches at the call sites, replacing the dynamic-dispatch variant
// modeling of the original Python/Pydantic source (spec.md §9).
package selector

// Kind discriminates the variant carried by a Selector.
type Kind string

const (
	KindByID          Kind = "by_id"
	KindByText        Kind = "by_text"
	KindByCoordinates Kind = "by_coordinates"
	KindByPercent     Kind = "by_percent"
)

// Selector is the tagged union described in spec.md §3: ById, ByText,
// ByCoords, ByPercent. Only the fields relevant to Kind are set. The
// resource-id-plus-text cross-check (spec.md §4.7 step 1) lives on Target,
// whose ResourceID and Text fields toolexec.resolveTarget checks directly,
// rather than as a distinct tagged-union variant here.
type Selector struct {
	Kind Kind

	ID   string
	Text string

	X, Y int // KindByCoordinates

	XPercent, YPercent float64 // KindByPercent, 0-100
}

// ByID builds a resource-id selector.
func ByID(id string) Selector { return Selector{Kind: KindByID, ID: id} }

// ByText builds a text selector.
func ByText(text string) Selector { return Selector{Kind: KindByText, Text: text} }

// ByCoordinates builds a pixel-coordinate selector.
func ByCoordinates(x, y int) Selector { return Selector{Kind: KindByCoordinates, X: x, Y: y} }

// ByPercent builds a percentage-coordinate selector. xPercent/yPercent are
// in [0,100].
func ByPercent(xPercent, yPercent float64) Selector {
	return Selector{Kind: KindByPercent, XPercent: xPercent, YPercent: yPercent}
}

// Resolve converts a percent selector into a pixel coordinate selector given
// the current screen size; other kinds are returned unchanged.
func (s Selector) Resolve(width, height int) Selector {
	if s.Kind != KindByPercent {
		return s
	}
	return Selector{
		Kind: KindByCoordinates,
		X:    percentToPixel(width, s.XPercent),
		Y:    percentToPixel(height, s.YPercent),
	}
}

func percentToPixel(dim int, percent float64) int {
	if dim <= 0 {
		return 0
	}
	px := int(float64(dim-1)*percent/100.0 + 0.5)
	if px < 0 {
		return 0
	}
	if px > dim-1 {
		return dim - 1
	}
	return px
}
