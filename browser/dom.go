package browser

import "strings"

// Element is the subset of a DOM element the tracker inspects.
type Element struct {
	TagName    string
	ID         string
	ClassName  string
	Text       string
	Href       string
	Attributes map[string]string
	Parent     *Element
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Attributes == nil {
		return "", false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// Is reports whether the element has the given tag name, ignoring case.
func (e *Element) Is(tag string) bool {
	return e != nil && strings.EqualFold(e.TagName, tag)
}

// Closest walks from e up through its ancestors and returns the first element
// for which match is true, or nil.
func (e *Element) Closest(match func(*Element) bool) *Element {
	for el := e; el != nil; el = el.Parent {
		if match(el) {
			return el
		}
	}
	return nil
}

// Form is a submitted form and its controls in document order.
type Form struct {
	ID     string
	Name   string
	Action string
	Fields []Field
}

// Field is one form control. Type is the lower-case input type ("text",
// "email", "checkbox", ...); selects and textareas use their tag name.
type Field struct {
	Name    string
	Type    string
	Value   string
	Checked bool
}
