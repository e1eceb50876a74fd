package hierarchy

import "strings"

// Element is a node in the UI hierarchy tree reported by the bridge, per
// spec.md §3 "UI Element".
type Element struct {
	ResourceID        string     `json:"resource_id,omitempty"`
	Text              string     `json:"text,omitempty"`
	AccessibilityText string     `json:"accessibility_text,omitempty"`
	BoundsRaw         string     `json:"bounds,omitempty"`
	Focused           bool       `json:"focused,omitempty"`
	Children          []*Element `json:"children,omitempty"`
}

// Bounds parses BoundsRaw, returning false if the element has no bounds or
// the bounds are malformed.
func (e *Element) Bounds() (Bounds, bool) {
	if e == nil || e.BoundsRaw == "" {
		return Bounds{}, false
	}
	b, err := ParseBounds(e.BoundsRaw)
	if err != nil {
		return Bounds{}, false
	}
	return b, true
}

// Walk invokes visit for every element in the tree rooted at elements, in
// document order, depth-first. The walk stops as soon as visit returns false.
func Walk(elements []*Element, visit func(*Element) bool) {
	walk(elements, visit)
}

func walk(elements []*Element, visit func(*Element) bool) bool {
	for _, el := range elements {
		if !visit(el) || !walk(el.Children, visit) {
			return false
		}
	}
	return true
}

// FindByResourceID returns the element matching resourceID, optionally at
// the given zero-based index among matches when multiple elements share the
// id. Returns nil if no match at that index exists.
func FindByResourceID(elements []*Element, resourceID string, index *int) *Element {
	want := 0
	if index != nil {
		want = *index
	}
	var found *Element
	seen := 0
	Walk(elements, func(el *Element) bool {
		if el.ResourceID == resourceID {
			if seen == want {
				found = el
				return false
			}
			seen++
		}
		return true
	})
	return found
}

// FindByText performs a case-insensitive exact match on element text,
// optionally at the given zero-based index among matches.
func FindByText(elements []*Element, text string, index *int) *Element {
	if text == "" {
		return nil
	}
	want := 0
	if index != nil {
		want = *index
	}
	lower := strings.ToLower(text)
	var found *Element
	seen := 0
	Walk(elements, func(el *Element) bool {
		if strings.ToLower(el.Text) == lower {
			if seen == want {
				found = el
				return false
			}
			seen++
		}
		return true
	})
	return found
}
