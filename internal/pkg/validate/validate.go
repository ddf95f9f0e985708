package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("nospace", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), " \t\r\n")
	}); err != nil {
		panic(fmt.Sprintf("validate: register nospace: %v", err))
	}
}

// Struct validates the given struct using its validate tags.
// Validation failures come back as domain.FieldErrors.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		fields := domain.FieldErrors{}
		for _, fe := range ve {
			if _, seen := fields[fe.Field()]; seen {
				continue
			}
			fields[fe.Field()] = message(fe)
		}
		return fields
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "nospace":
		return "must not contain spaces"
	case "eqfield":
		return "values do not match"
	}
	return fmt.Sprintf("failed '%s'", fe.Tag())
}
