package ml

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnverifiedOrdering is advisory: the vector was produced without schema
// metadata, so its column order could not be checked.
var ErrUnverifiedOrdering = errors.New("ml: no schema metadata available, column ordering unverified")

// ErrInvalidSchema marks a column schema that cannot be used for projection.
var ErrInvalidSchema = errors.New("ml: invalid column schema")

// MissingFieldsError reports vitals that were never supplied.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "ml: missing required vitals: " + strings.Join(e.Fields, ", ")
}

// ScalingError reports that the scaler rejected the continuous tuple. It means
// the scaler was fit on a different column set and is not retryable.
type ScalingError struct {
	Want int
	Got  int
	Err  error
}

func (e *ScalingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ml: scaler rejected %d continuous columns: %v", e.Want, e.Err)
	}
	return fmt.Sprintf("ml: scaler returned %d values, want %d", e.Got, e.Want)
}

func (e *ScalingError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError reports declared model columns that the assembler never
// produces.
type SchemaMismatchError struct {
	SchemaVersion string
	Missing       []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("ml: schema %q declares columns absent from feature record: %s",
		e.SchemaVersion, strings.Join(e.Missing, ", "))
}
