// Package parser turns fetched catalog markup into CatalogItem records. It
// performs no I/O.
package parser

import (
	"errors"
	"fmt"
)

// ParseErrorKind classifies extraction failures.
type ParseErrorKind string

const (
	MissingField         ParseErrorKind = "missing_field"
	UnknownRatingToken   ParseErrorKind = "unknown_rating"
	EncodingRepairFailed ParseErrorKind = "encoding_repair"
)

// ParseError reports a field that could not be extracted.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s", e.Kind)
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches another *ParseError with the same kind and, when set, field.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

func missing(field string) *ParseError {
	return &ParseError{Kind: MissingField, Field: field}
}

// IsMissingField reports whether err is a MissingField error for field.
func IsMissingField(err error, field string) bool {
	return errors.Is(err, &ParseError{Kind: MissingField, Field: field})
}

// Label is the error type used in reports and metrics.
func (e *ParseError) Label() string {
	return string(e.Kind)
}
