// Package js holds the scripts evaluated in pages driven over CDP.
package js

import (
	_ "embed"

	"github.com/mailru/easyjson/jwriter"
)

// QuerySelectorScript reports whether an element matches a selector.
//
//go:embed query_selector.js
var QuerySelectorScript string

// TextContentScript returns the text content of the first element matching
// a selector, or its current value for form fields.
//
//go:embed text_content.js
var TextContentScript string

// FillScript sets the value of a form field and fires the input and change
// events a user typing would fire.
//
//go:embed fill.js
var FillScript string

// ElementBoxScript scrolls the first element matching a selector into view
// and returns its bounding box in viewport coordinates, or null.
//
//go:embed element_box.js
var ElementBoxScript string

// PageSizeScript returns the size of the whole document.
//
//go:embed page_size.js
var PageSizeScript string

// Call returns an expression calling the function script with args passed
// as JS string literals.
func Call(script string, args ...string) string {
	var w jwriter.Writer
	w.RawByte('(')
	w.RawString(script)
	w.RawString(")(")
	for i, a := range args {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(a)
	}
	w.RawByte(')')

	b, _ := w.BuildBytes()
	return string(b)
}
