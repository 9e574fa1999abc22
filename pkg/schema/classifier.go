package schema

import (
	"log/slog"

	"github.com/parleyhq/parley/pkg/domain"
)

// Classify partitions an ordered field list into hard, soft and hidden
// slots. A field with a non-empty default is always hidden, regardless of
// required. Malformed records (no name) are skipped with a warning; the
// function itself never fails.
func Classify(fields []domain.Field, logger *slog.Logger) domain.SlotClassification {
	class := domain.SlotClassification{
		Hard:   []string{},
		Soft:   []string{},
		Hidden: []string{},
	}
	for i, f := range fields {
		if f.Name == "" {
			if logger != nil {
				logger.Warn("Skipping malformed schema field", "index", i)
			}
			continue
		}
		switch {
		case f.HasDefault():
			class.Hidden = append(class.Hidden, f.Name)
		case f.Required:
			class.Hard = append(class.Hard, f.Name)
		default:
			class.Soft = append(class.Soft, f.Name)
		}
	}
	return class
}

// WellFormed filters out malformed field records, preserving order.
// The dialogue engine keeps only these for priority resolution.
func WellFormed(fields []domain.Field) []domain.Field {
	out := make([]domain.Field, 0, len(fields))
	for _, f := range fields {
		if f.Name != "" {
			out = append(out, f)
		}
	}
	return out
}
