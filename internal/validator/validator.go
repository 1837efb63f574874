package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ensayo-paes/practice-service/internal/models"
)

// ValidationError represents a single field failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator wraps go-playground struct validation plus the session
// business rules that tags cannot express.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate runs tag-based validation on any struct.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var errors ValidationErrors
	for _, fe := range err.(validator.ValidationErrors) {
		errors = append(errors, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return errors
}

// ValidateSessionConfig applies the rules a practice session must satisfy
// beyond simple tags.
func (v *Validator) ValidateSessionConfig(cfg models.SessionConfig) error {
	if err := v.Validate(cfg); err != nil {
		return err
	}

	var errors ValidationErrors

	// Review sessions are untimed by definition.
	if cfg.Mode == models.ModeReview && cfg.SecondsPerQuestion != 0 {
		errors = append(errors, ValidationError{
			Field:   "SecondsPerQuestion",
			Message: "review mode does not use a countdown",
			Value:   cfg.SecondsPerQuestion,
			Rule:    "business_logic",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	default:
		return fmt.Sprintf("failed rule %s", fe.Tag())
	}
}
