package transformations

import "fmt"

// InvalidRangeError is returned by Apply when from is newer than to.
// Migrations only run forward.
type InvalidRangeError struct {
	From string
	To   string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("from_version %s must not be greater than to_version %s", e.From, e.To)
}

// MissingTransformerError is returned when a configured transformer name has
// no registered implementation for its domain and version.
type MissingTransformerError struct {
	Domain  string
	Version string
	Name    string
}

func (e *MissingTransformerError) Error() string {
	return fmt.Sprintf("%s transformer %q not found for version %s", e.Domain, e.Name, e.Version)
}

// DuplicateVersionError is returned when two configured version buckets of a
// domain compare equal (for example "9.0" and "9.0.0").
type DuplicateVersionError struct {
	Domain  string
	Version string
	Other   string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("%s transformations: versions %s and %s are the same version", e.Domain, e.Version, e.Other)
}
