// Package validate wraps go-playground/validator with JSON field names and
// English messages, and converts failures into domain.ValidationError.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"agencyops/internal/domain"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag   = "notblank"
	departmentTag = "department"
	roleTag       = "role"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// JSON tag names in errors instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(departmentTag, func(fl validator.FieldLevel) bool {
		return domain.Department(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, departmentTag, roleTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case departmentTag:
		return "unknown department"
	case roleTag:
		return "unknown role"
	default:
		return ""
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// Struct validates s and returns every failing field as an issue on entity.
// It returns nil when s is valid.
func Struct(entity string, s any) *domain.ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verr := &domain.ValidationError{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(entity, "", "", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		msg := fe.Translate(translator)
		// default translations lead with the field name
		msg = strings.TrimSpace(strings.TrimPrefix(msg, fe.Field()))
		verr.Add(entity, "", fe.Field(), msg)
	}
	return verr
}
