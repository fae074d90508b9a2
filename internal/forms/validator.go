package forms

import (
	"fmt"
	"regexp"

	"maintdesk/internal/apperr"
	"maintdesk/internal/schema"
)

// Validator checks one submitted value. A nil return means the value passed.
type Validator func(value any) *apperr.ErrorDetail

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// BuildValidator composes the validation chain for a field. Checks run in a
// fixed order — required, max/min length, max/min value, email format, enum
// membership — and the first failure determines the reported error.
func BuildValidator(field *schema.FieldDefinition) Validator {
	var checks []Validator

	if field.Required {
		checks = append(checks, requiredCheck(field))
	}
	if field.MaxLength != nil {
		checks = append(checks, maxLengthCheck(field, *field.MaxLength))
	}
	if field.MinLength != nil {
		checks = append(checks, minLengthCheck(field, *field.MinLength))
	}
	if field.Max != nil {
		checks = append(checks, maxValueCheck(field, *field.Max))
	}
	if field.Min != nil {
		checks = append(checks, minValueCheck(field, *field.Min))
	}
	if field.Type == schema.TypeEmail {
		checks = append(checks, emailCheck(field))
	}
	if field.Type == schema.TypeEnum && len(field.Values) > 0 {
		checks = append(checks, enumCheck(field))
	}

	return func(value any) *apperr.ErrorDetail {
		for _, check := range checks {
			if detail := check(value); detail != nil {
				return detail
			}
		}
		return nil
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func requiredCheck(field *schema.FieldDefinition) Validator {
	return func(value any) *apperr.ErrorDetail {
		if isEmpty(value) {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "required",
				Message: fmt.Sprintf("%s is required", schema.Label(field.Name)),
			}
		}
		return nil
	}
}

func maxLengthCheck(field *schema.FieldDefinition, limit int) Validator {
	return func(value any) *apperr.ErrorDetail {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if len(s) > limit {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "max_length",
				Message: fmt.Sprintf("%s must be at most %d characters", schema.Label(field.Name), limit),
			}
		}
		return nil
	}
}

func minLengthCheck(field *schema.FieldDefinition, limit int) Validator {
	return func(value any) *apperr.ErrorDetail {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if len(s) < limit {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "min_length",
				Message: fmt.Sprintf("%s must be at least %d characters", schema.Label(field.Name), limit),
			}
		}
		return nil
	}
}

func maxValueCheck(field *schema.FieldDefinition, limit float64) Validator {
	return func(value any) *apperr.ErrorDetail {
		num, ok := toFloat64(value)
		if !ok {
			return nil
		}
		if num > limit {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "max",
				Message: fmt.Sprintf("%s must be at most %v", schema.Label(field.Name), limit),
			}
		}
		return nil
	}
}

func minValueCheck(field *schema.FieldDefinition, limit float64) Validator {
	return func(value any) *apperr.ErrorDetail {
		num, ok := toFloat64(value)
		if !ok {
			return nil
		}
		if num < limit {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "min",
				Message: fmt.Sprintf("%s must be at least %v", schema.Label(field.Name), limit),
			}
		}
		return nil
	}
}

func emailCheck(field *schema.FieldDefinition) Validator {
	return func(value any) *apperr.ErrorDetail {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if !emailPattern.MatchString(s) {
			return &apperr.ErrorDetail{
				Field:   field.Name,
				Rule:    "email",
				Message: fmt.Sprintf("%s must be a valid email address", schema.Label(field.Name)),
			}
		}
		return nil
	}
}

func enumCheck(field *schema.FieldDefinition) Validator {
	return func(value any) *apperr.ErrorDetail {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		for _, allowed := range field.Values {
			if s == allowed {
				return nil
			}
		}
		return &apperr.ErrorDetail{
			Field:   field.Name,
			Rule:    "enum",
			Message: fmt.Sprintf("%s must be one of the allowed values", schema.Label(field.Name)),
		}
	}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
