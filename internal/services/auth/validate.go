package auth

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError превращает первую ошибку validator в *apperr.ValidationError.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return apperr.Validation("", err.Error())
	}
	fe := errs[0]
	field := fe.Field()

	switch fe.ActualTag() {
	case "required":
		return apperr.Validation(field, "This field is required.")
	case "email":
		return apperr.Validation(field, "Invalid email address.")
	case "eqfield":
		return apperr.Validation(field, "Field must be equal to password.")
	case "min", "max":
		if field == "username" {
			return apperr.Validation(field, "Field must be between 2 and 20 characters long.")
		}
		return apperr.Validation(field, "Field has invalid length.")
	default:
		return apperr.Validation(field, "Field is not valid.")
	}
}
