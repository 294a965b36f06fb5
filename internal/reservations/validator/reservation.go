package validator

import (
	"errors"
	"fmt"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	if len(v) == 1 {
		return v[0].Error()
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type ReservationValidator struct {
	validate *validator.Validate
	log      *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	return &ReservationValidator{
		validate: validator.New(),
		log:      log,
	}
}

// Validate checks a booking request whose holder has already been resolved,
// so an empty holder is an error here.
func (v *ReservationValidator) Validate(req *model.BookRequest) error {
	var errs ValidationErrors
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		errs = translateValidationErrors(validationErrs)
	}
	if strings.TrimSpace(req.Holder) == "" {
		errs = append(errs, ValidationError{Field: "holder", Message: "is required"})
	}
	if len(errs) > 0 {
		v.log.Debug("Reservation validation failed", "errors", errs)
		return errs
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors
	for _, err := range errs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldName(err.Field()),
			Message: message(err),
		})
	}
	return validationErrors
}

func fieldName(field string) string {
	if field == "SlotID" {
		return "slot_id"
	}
	return strings.ToLower(field)
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

// IsSlotIDError reports whether err concerns only the slot id.
func IsSlotIDError(err error) bool {
	var errs ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Field != "slot_id" {
			return false
		}
	}
	return true
}
