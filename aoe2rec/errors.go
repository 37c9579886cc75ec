package aoe2rec

import (
	"errors"
	"fmt"
)

// ErrCorruptFormat matches every *CorruptFormatError via errors.Is.
var ErrCorruptFormat = errors.New("aoe2rec: corrupt recorded game")

// CorruptFormatError reports bytes that do not match what the format
// requires at a given offset. It is always fatal for the file being read.
type CorruptFormatError struct {
	Offset   int
	What     string
	Expected any
	Actual   any
}

func (e *CorruptFormatError) Error() string {
	if e.Expected == nil && e.Actual == nil {
		return fmt.Sprintf("aoe2rec: corrupt %s at offset %d", e.What, e.Offset)
	}
	return fmt.Sprintf("aoe2rec: corrupt %s at offset %d: expected %v, got %v",
		e.What, e.Offset, e.Expected, e.Actual)
}

func (e *CorruptFormatError) Is(target error) bool {
	return target == ErrCorruptFormat
}

func corrupt(offset int, what string, expected, actual any) error {
	return &CorruptFormatError{Offset: offset, What: what, Expected: expected, Actual: actual}
}

// UnsupportedVersionError is recorded as a warning when the save format
// version is older than any version this package has been checked against.
// Parsing continues; older files frequently still decode.
type UnsupportedVersionError struct {
	Version float64
	Minimum float64
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("aoe2rec: save format version %.2f is older than %.2f", e.Version, e.Minimum)
}

// InconsistentInputsError is returned when recordings handed to a merge
// cannot be recordings of the same match.
type InconsistentInputsError struct {
	Reason string
}

func (e *InconsistentInputsError) Error() string {
	return "aoe2rec: inconsistent inputs: " + e.Reason
}

// AmbiguousNameLocationError is returned when the second copy of a player's
// name inside the header is missing or occurs more than once.
type AmbiguousNameLocationError struct {
	Name  string
	Count int
}

func (e *AmbiguousNameLocationError) Error() string {
	return fmt.Sprintf("aoe2rec: expected one free-standing copy of player name %q in header, found %d", e.Name, e.Count)
}
