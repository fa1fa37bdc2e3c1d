// Package validation wraps go-playground/validator with the service's error type.
package validation

import (
	"fmt"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance
var Validate *validator.Validate

func init() {
	Validate = validator.New()
	_ = Validate.RegisterValidation("expense_type", validateExpenseType)
	_ = Validate.RegisterValidation("user_role", validateUserRole)
}

// Struct validates s and returns an INVALID_INPUT error describing every failed field.
func Struct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.InvalidInput("invalid input", err)
	}
	return apperr.InvalidInput(describe(validationErrors), err)
}

// Var validates a single value against tag.
func Var(field string, value interface{}, tag string) error {
	if err := Validate.Var(value, tag); err != nil {
		return apperr.InvalidInput(fmt.Sprintf("%s is invalid", field), err)
	}
	return nil
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func validateExpenseType(fl validator.FieldLevel) bool {
	return models.IsValidExpenseType(models.ExpenseType(fl.Field().String()))
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.IsValidRole(models.Role(fl.Field().String()))
}
