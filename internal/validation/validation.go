package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator checks request structs and turns field errors into readable
// messages, all of them at once.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)

	enLocale := en.New()
	trans, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	return &Validator{v: v, trans: trans}, nil
}

func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct returns nil or every failure message for s.
func (val *Validator) Struct(s any) []string {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(val.trans))
	}
	return msgs
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
