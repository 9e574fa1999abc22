package schema

import (
	"fmt"

	"github.com/parleyhq/parley/pkg/domain"
)

// Report is the outcome of pre-submission validation. Errors block the
// write; Warnings do not (e.g. a missing field covered by a default).
type Report struct {
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	ReadyForWrite bool     `json:"ready_for_write"`
}

// ValidateRecord checks a collected record against the declared schema.
// Hard failures are collected into an AggregateError and rendered into the
// report as a batch; the function itself never fails.
func ValidateRecord(fields []domain.Field, record map[string]any) Report {
	var failures []*ValidationError
	warnings := []string{}

	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		value, present := record[f.Name]

		if !present || value == nil {
			switch {
			case f.HasDefault():
				warnings = append(warnings,
					fmt.Sprintf("field %q missing, default will be applied", f.Name))
			case f.Required:
				failures = append(failures,
					&ValidationError{Field: f.Name, Reason: "required field is missing"})
			}
			continue
		}

		if err := checkType(f, value); err != nil {
			failures = append(failures, err)
			continue
		}
		if err := checkEnum(f, value); err != nil {
			failures = append(failures, err)
		}
	}

	report := Report{Errors: []string{}, Warnings: warnings, ReadyForWrite: true}
	if len(failures) > 0 {
		agg := &AggregateError{Errors: failures}
		report.Errors = agg.Messages()
		report.ReadyForWrite = false
	}
	return report
}

func checkType(f domain.Field, value any) *ValidationError {
	switch f.Type {
	case "", "string", "text", "varchar":
		// Anything stringable is accepted; the engine stores values opaquely.
		return nil
	case "int", "integer", "bigint":
		switch v := value.(type) {
		case int, int32, int64:
			return nil
		case float64:
			if v == float64(int64(v)) {
				return nil
			}
		}
		return &ValidationError{Field: f.Name, Reason: "expected an integer", Value: value}
	case "float", "double", "number", "decimal":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return nil
		}
		return &ValidationError{Field: f.Name, Reason: "expected a number", Value: value}
	case "bool", "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
		return &ValidationError{Field: f.Name, Reason: "expected a boolean", Value: value}
	default:
		// Unknown declared types are not enforced.
		return nil
	}
}

func checkEnum(f domain.Field, value any) *ValidationError {
	if len(f.Enum) == 0 {
		return nil
	}
	got := fmt.Sprintf("%v", value)
	for _, allowed := range f.Enum {
		if got == allowed {
			return nil
		}
	}
	return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("value not in enum %v", f.Enum), Value: value}
}
