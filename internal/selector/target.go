package selector

import "strconv"

// Target is the composite locator used by the Tap/Input tools, carrying up
// to three locators tried in order: resource_id (+optional index),
// coordinates, then text (+optional index). Spec.md §3 "Target".
type Target struct {
	ResourceID      string
	ResourceIDIndex *int

	Coordinates *Point

	Text      string
	TextIndex *int
}

// Point is a pixel coordinate pair, kept distinct from hierarchy.Point to
// avoid a dependency cycle between selector and hierarchy; callers convert
// at the boundary.
type Point struct {
	X, Y int
}

// HasAnyLocator reports whether the target carries at least one usable
// locator.
func (t Target) HasAnyLocator() bool {
	return t.ResourceID != "" || t.Coordinates != nil || t.Text != ""
}

// Describe renders a human-readable description of the locator that was
// attempted, for error messages and success confirmations (spec.md §4.6
// "Returns success string naming the successful locator").
func Describe(kind string, t Target) string {
	switch kind {
	case "resource_id":
		return describeIndexed("resource_id", t.ResourceID, t.ResourceIDIndex)
	case "coordinates":
		if t.Coordinates != nil {
			return "coordinates=[" + strconv.Itoa(t.Coordinates.X) + "," + strconv.Itoa(t.Coordinates.Y) + "]"
		}
		return "coordinates=<none>"
	case "text":
		return describeIndexed("text", t.Text, t.TextIndex)
	default:
		return "N/A"
	}
}

func describeIndexed(label, value string, index *int) string {
	idx := "0"
	if index != nil {
		idx = strconv.Itoa(*index)
	}
	return label + "='" + value + "' (index=" + idx + ")"
}
