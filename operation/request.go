// Package operation runs the page operations of batch items.
package operation

import (
	"errors"
	"fmt"
)

// Kind names an operation.
type Kind string

// Operation kinds.
const (
	KindNavigate     Kind = "navigate"
	KindScreenshot   Kind = "takeScreenshot"
	KindGetText      Kind = "getText"
	KindClickElement Kind = "clickElement"
	KindFillForm     Kind = "fillForm"
)

// Kinds returns all operation kinds.
func Kinds() []Kind {
	return []Kind{KindNavigate, KindScreenshot, KindGetText, KindClickElement, KindFillForm}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q, must be one of %q", s, Kinds())
}

// DefaultOutputPropertyName is where screenshots are attached by default.
const DefaultOutputPropertyName = "screenshot"

// ErrMissingField is wrapped by validation errors of requests lacking a
// required field.
var ErrMissingField = errors.New("missing required field")

// Request is one of Navigate, Screenshot, GetText, ClickElement or
// FillForm.
type Request interface {
	Kind() Kind
	// TargetURL is the page the operation runs on.
	TargetURL() string
	Validate() error

	isRequest()
}

// Navigate loads a page.
type Navigate struct {
	URL string
}

// Screenshot captures a PNG of a page.
type Screenshot struct {
	URL      string
	FullPage bool
	// SavePath is where the capture is also written, if not empty.
	SavePath string
	// OutputPropertyName is the attachment name, DefaultOutputPropertyName
	// when empty.
	OutputPropertyName string
}

// GetText reads the text of the first element matching Selector.
type GetText struct {
	URL      string
	Selector string
}

// ClickElement clicks the first element matching Selector.
type ClickElement struct {
	URL      string
	Selector string
}

// FillForm sets the value of the first form field matching Selector.
// An empty Value clears the field.
type FillForm struct {
	URL      string
	Selector string
	Value    string
}

func (Navigate) Kind() Kind     { return KindNavigate }
func (Screenshot) Kind() Kind   { return KindScreenshot }
func (GetText) Kind() Kind      { return KindGetText }
func (ClickElement) Kind() Kind { return KindClickElement }
func (FillForm) Kind() Kind     { return KindFillForm }

func (r Navigate) TargetURL() string     { return r.URL }
func (r Screenshot) TargetURL() string   { return r.URL }
func (r GetText) TargetURL() string      { return r.URL }
func (r ClickElement) TargetURL() string { return r.URL }
func (r FillForm) TargetURL() string     { return r.URL }

func (Navigate) isRequest()     {}
func (Screenshot) isRequest()   {}
func (GetText) isRequest()      {}
func (ClickElement) isRequest() {}
func (FillForm) isRequest()     {}

func (r Navigate) Validate() error {
	return requireFields(r.Kind(), field{"url", r.URL})
}

func (r Screenshot) Validate() error {
	return requireFields(r.Kind(), field{"url", r.URL})
}

func (r GetText) Validate() error {
	return requireFields(r.Kind(), field{"url", r.URL}, field{"selector", r.Selector})
}

func (r ClickElement) Validate() error {
	return requireFields(r.Kind(), field{"url", r.URL}, field{"selector", r.Selector})
}

func (r FillForm) Validate() error {
	return requireFields(r.Kind(), field{"url", r.URL}, field{"selector", r.Selector})
}

// outputName returns the attachment name of the screenshot.
func (r Screenshot) outputName() string {
	if r.OutputPropertyName == "" {
		return DefaultOutputPropertyName
	}
	return r.OutputPropertyName
}

type field struct {
	name  string
	value string
}

func requireFields(kind Kind, fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return &Error{
				Kind:   kind,
				Reason: ReasonOther,
				Err:    fmt.Errorf("%w %q", ErrMissingField, f.name),
			}
		}
	}
	return nil
}
