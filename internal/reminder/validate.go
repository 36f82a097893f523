package reminder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected task field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError is returned when a task violates its invariants. It is
// reported back to the host; it never reaches the tick loop.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid task"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeOfDay(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register hhmm validator: %v", err))
	}
	if err := v.RegisterValidation("task_kind", func(fl validator.FieldLevel) bool {
		k := Kind(fl.Field().Int())
		return k == KindReminder || k == KindCall
	}); err != nil {
		panic(fmt.Sprintf("failed to register task_kind validator: %v", err))
	}
	v.RegisterStructValidation(validateTaskPayload, Task{})
	return v
}

// validateTaskPayload checks the kind-specific required fields.
func validateTaskPayload(sl validator.StructLevel) {
	t := sl.Current().Interface().(Task)
	switch t.Kind {
	case KindReminder:
		if strings.TrimSpace(t.Message) == "" {
			sl.ReportError(t.Message, "message", "Message", "required_for_reminder", "")
		}
	case KindCall:
		if strings.TrimSpace(t.ContactName) == "" {
			sl.ReportError(t.ContactName, "contact_name", "ContactName", "required_for_call", "")
		}
		if strings.TrimSpace(t.PhoneNumber) == "" {
			sl.ReportError(t.PhoneNumber, "phone_number", "PhoneNumber", "required_for_call", "")
		}
	}
}

// Validate checks the task invariants and returns a *ValidationError on failure.
func Validate(t Task) error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "task", Reason: err.Error()}}}
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe.Tag())})
	}
	return out
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "hhmm":
		return "must be HH:MM between 00:00 and 23:59"
	case "task_kind":
		return "unknown task kind"
	case "required_for_reminder":
		return "required for reminder tasks"
	case "required_for_call":
		return "required for call tasks"
	default:
		return "failed " + tag
	}
}
