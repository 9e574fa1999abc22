package domain

// Field describes one column of the schema a dialogue collects data for.
// It is produced by an external schema provider; the engine only consumes it.
type Field struct {
	Name     string   `json:"name" mapstructure:"name"`
	Type     string   `json:"type,omitempty" mapstructure:"type"`
	Required bool     `json:"required,omitempty" mapstructure:"required"`
	Unique   bool     `json:"unique,omitempty" mapstructure:"unique"`
	Default  any      `json:"default,omitempty" mapstructure:"default"`
	Enum     []string `json:"enum,omitempty" mapstructure:"enum"`

	// Priority orders elicitation: lower is asked sooner. Zero or negative
	// means "not declared" and is treated as DefaultPriority.
	Priority int `json:"priority,omitempty" mapstructure:"priority"`
}

// DefaultPriority is the effective priority of fields that declare none.
// Such fields are asked last.
const DefaultPriority = 999

// EffectivePriority resolves the elicitation priority of the field.
func (f Field) EffectivePriority() int {
	if f.Priority <= 0 {
		return DefaultPriority
	}
	return f.Priority
}

// HasDefault reports whether the field carries a usable default value.
// A field with a default is never asked for, regardless of Required.
func (f Field) HasDefault() bool {
	if f.Default == nil {
		return false
	}
	if s, ok := f.Default.(string); ok {
		return s != ""
	}
	return true
}

// SlotClassification partitions schema fields into the three elicitation
// classes: hard (required, must ask), soft (optional, may ask) and hidden
// (defaulted, never ask).
type SlotClassification struct {
	Hard   []string `json:"hard"`
	Soft   []string `json:"soft"`
	Hidden []string `json:"hidden"`
}

// Askable returns hard followed by soft slot names, in declaration order.
// These are the slots a session must account for in pending/completed.
func (c SlotClassification) Askable() []string {
	out := make([]string, 0, len(c.Hard)+len(c.Soft))
	out = append(out, c.Hard...)
	out = append(out, c.Soft...)
	return out
}
