package parser

import (
	"errors"
	"fmt"
)

// Sentinel errors for whole-output failures.
var (
	// ErrNoListing is returned when list output has no device table.
	ErrNoListing = errors.New("parser: no device listing found")

	// ErrNoDeviceTable is returned when describe output has no attribute table.
	ErrNoDeviceTable = errors.New("parser: no attribute table found")
)

// excerptLen bounds how much of the offending output a ParseError carries.
const excerptLen = 200

// ParseError reports output whose top-level structure could not be located.
// It wraps ErrNoListing or ErrNoDeviceTable.
type ParseError struct {
	Kind    error
	Excerpt string
}

func newParseError(kind error, text string) *ParseError {
	if len(text) > excerptLen {
		text = text[:excerptLen] + "..."
	}
	return &ParseError{Kind: kind, Excerpt: text}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v in output %q", e.Kind, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Kind }

// Warning codes for problems confined to one row or header field.
const (
	WarnUnknownType = "UNKNOWN_TYPE"
	WarnBadValue    = "BAD_VALUE"
	WarnBadRow      = "BAD_ROW"
	WarnBadField    = "BAD_FIELD"
)

// Warning is a non-fatal parse problem. The affected row or field is omitted
// from the result; everything else is kept.
type Warning struct {
	// Line is the 1-based line number in the tool output.
	Line int `json:"line"`

	// Code is a machine-readable warning code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Code, w.Message)
}
