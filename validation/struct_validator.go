package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ylai/autoplatform/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// nodeIDPattern accepts generated ULIDs as well as hand-written ids such as
// "n1" or "crawl-news".
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})

		_ = validate.RegisterValidation("node_id", func(fl validator.FieldLevel) bool {
			return nodeIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks s against its `validate` struct tags and returns an
// INVALID_INPUT *errors.AppError listing every failing field.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return errors.Validation("validation failed").WithCause(err)
	}

	v := New()
	for _, e := range verrs {
		v.AddError(fieldPath(e), formatValidationError(e))
	}
	return v.Validate()
}

// Var validates a single value against a tag expression, e.g. "oneof=ws simple".
func Var(field string, value any, tag string) error {
	if err := getValidator().Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if asValidationErrors(err, &verrs) && len(verrs) > 0 {
			return New().AddError(field, formatValidationError(verrs[0])).Validate()
		}
		return errors.InvalidInput(field, err.Error())
	}
	return nil
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

// fieldPath drops the top-level struct name: "Document.nodes[0].script" -> "nodes[0].script".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "url":
		return "must be a valid URL"
	case "hostname_rfc1123", "hostname", "ip":
		return "must be a valid host"
	case "oneof":
		return "must be one of: " + e.Param()
	case "node_id":
		return "must be a node id of letters, digits, '_', '.', ':' or '-'"
	case "dive":
		return "is invalid"
	default:
		return "failed " + e.Tag() + " check"
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteRune('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
