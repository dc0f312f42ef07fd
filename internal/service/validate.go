package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/catchlog/internal/apperror"
	"github.com/sakif/catchlog/internal/model"
)

// newValidator returns a validator that reports fields by their JSON names,
// so error payloads match what the client sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the validate tags on v and converts failures into one
// ValidationError listing every offending field.
func validateStruct(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apperror.ValidationFields(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return catchTypeMessage(fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func catchTypeMessage(field string) string {
	types := model.CatchTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("%s must be one of %s", field, strings.Join(names, ", "))
}

// dateRangeMessage is shared with the HTTP decoder's wording for the same
// failure.
const dateRangeMessage = "date_caught must be between 1677-09-21 and 2262-04-11"
