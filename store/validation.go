package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rule identifies the validation rule a ValidationError reports.
type Rule string

const (
	RuleUnknown    Rule = "unknown"
	RuleRequired   Rule = "required"
	RuleDuplicate  Rule = "duplicate"
	RuleMin        Rule = "min"
	RuleMax        Rule = "max"
	RuleMinLength  Rule = "minLength"
	RuleMaxLength  Rule = "maxLength"
	RuleNotFound   Rule = "notFound"
	RuleNotFoundID Rule = "notFoundID"
)

// ValidationDetail is one entry of ValidationError.Data.
type ValidationDetail struct {
	// Type is always "store".
	Type string `json:"type"`

	// Field is empty when the failure is not tied to a field; it encodes as null.
	Field string `json:"field"`

	Rule Rule `json:"rule"`
}

// MarshalJSON encodes an empty Field as null.
func (d ValidationDetail) MarshalJSON() ([]byte, error) {
	var field *string
	if d.Field != "" {
		field = &d.Field
	}
	return json.Marshal(struct {
		Type  string  `json:"type"`
		Field *string `json:"field"`
		Rule  Rule    `json:"rule"`
	}{d.Type, field, d.Rule})
}

// ValidationError is a structured, recoverable failure for callers to surface.
type ValidationError struct {
	Message string             `json:"message"`
	Data    []ValidationDetail `json:"data"`
}

func (e *ValidationError) Error() string { return e.Message }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Rule returns the rule of the first detail.
func (e *ValidationError) Rule() Rule {
	if len(e.Data) == 0 {
		return ""
	}
	return e.Data[0].Rule
}

// Field returns the field of the first detail.
func (e *ValidationError) Field() string {
	if len(e.Data) == 0 {
		return ""
	}
	return e.Data[0].Field
}

// Messages formats validation messages for one model. The wording is matched
// by downstream consumers and must not change.
type Messages struct {
	model string
}

func (m Messages) Unknown(field string) string {
	return fmt.Sprintf("Unknown error with '%s' on model '%s'", field, m.model)
}

func (m Messages) Required(field string) string {
	return fmt.Sprintf("Required field '%s' is missing on model '%s'", field, m.model)
}

func (m Messages) Duplicate(field string) string {
	return fmt.Sprintf("Duplicate field '%s' on model '%s'", field, m.model)
}

func (m Messages) Min(field string, passed, expected any) string {
	return fmt.Sprintf("Field '%s' should be above '%v', not '%v' on model '%s'", field, expected, passed, m.model)
}

func (m Messages) Max(field string, passed, expected any) string {
	return fmt.Sprintf("Field '%s' should be below '%v', not '%v' on model '%s'", field, expected, passed, m.model)
}

func (m Messages) MinLength(field, passed string, expected int) string {
	return fmt.Sprintf("Field '%s' should be longer than '%d' characters, not '%d' on model '%s'", field, expected, utf8.RuneCountInString(passed), m.model)
}

func (m Messages) MaxLength(field, passed string, expected int) string {
	return fmt.Sprintf("Field '%s' should be shorter than '%d' characters, not '%d' on model '%s'", field, expected, utf8.RuneCountInString(passed), m.model)
}

func (m Messages) NotFound() string {
	return "No resource found"
}

func (m Messages) NotFoundID(id string) string {
	return fmt.Sprintf("No resource found with id '%s'", id)
}

// Validate checks rec against the schema rules and returns the first violation.
// With partial set, required fields may be absent.
func (m *Model) Validate(rec Record, partial bool) error {
	msgs := m.Messages()
	for _, p := range m.schema.Properties {
		v, ok := rec[p.Name]
		if !ok || v == nil {
			if p.Required && !partial {
				return m.ValidationError(msgs.Required(p.Name), p.Name, RuleRequired)
			}
			continue
		}

		if n, isNum := toFloat(v); isNum {
			if p.Min != nil && n < *p.Min {
				return m.ValidationError(msgs.Min(p.Name, v, *p.Min), p.Name, RuleMin)
			}
			if p.Max != nil && n > *p.Max {
				return m.ValidationError(msgs.Max(p.Name, v, *p.Max), p.Name, RuleMax)
			}
		}

		if s, isStr := v.(string); isStr {
			if p.Required && !partial && strings.TrimSpace(s) == "" {
				return m.ValidationError(msgs.Required(p.Name), p.Name, RuleRequired)
			}
			if p.MinLength != nil && utf8.RuneCountInString(s) < *p.MinLength {
				return m.ValidationError(msgs.MinLength(p.Name, s, *p.MinLength), p.Name, RuleMinLength)
			}
			if p.MaxLength != nil && utf8.RuneCountInString(s) > *p.MaxLength {
				return m.ValidationError(msgs.MaxLength(p.Name, s, *p.MaxLength), p.Name, RuleMaxLength)
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
