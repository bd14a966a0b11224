package models

import "fmt"

// FieldError reports a backend row that failed boundary validation. Rows
// are checked where they enter the process so the rest of the code never
// touches loosely shaped data.
type FieldError struct {
	Row   string
	Field string
	Value any
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s row: bad %s: %v", e.Row, e.Field, e.Value)
}
