package validator

import (
	"fmt"
	"strings"

	"go-pos-admin/internal/model"
	"go-pos-admin/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ErrorResponse struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       string `json:"value,omitempty"`
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})
	validate.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		return model.Tier(fl.Field().String()).IsValid()
	})
	// Empty is allowed; the refund planner fills in the default reason.
	validate.RegisterValidation("refund_reason", func(fl validator.FieldLevel) bool {
		r := fl.Field().String()
		return r == "" || model.RefundReason(r).IsValid()
	})
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return model.PaymentMethod(fl.Field().String()).IsValid()
	})
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var errors []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []*ErrorResponse{{FailedField: "body", Tag: "invalid"}}
		}
		for _, err := range verrs {
			errors = append(errors, &ErrorResponse{
				FailedField: err.StructNamespace(),
				Tag:         err.Tag(),
				Value:       err.Param(),
			})
		}
	}
	return errors
}

// Check runs ValidateStruct and folds any failures into a VALIDATION_ERROR.
func Check(data interface{}) error {
	errs := ValidateStruct(data)
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s failed on %s", e.FailedField, e.Tag)
	}
	return apperror.Validation(strings.Join(parts, "; ")).WithDetails(errs)
}
