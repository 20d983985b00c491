package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/dtroode/otpauth-server/internal/apierrors"
)

const maxBodyBytes = 1 << 20

// Validator decodes JSON request bodies and checks them against their
// validate tags. Field names in messages are the JSON names.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var messages = map[string]string{
	"required": "The {0} field is required.",
	"email":    "The {0} must be a valid email address.",
	"min":      "The {0} must be at least {1} characters.",
	"max":      "The {0} must not be greater than {1} characters.",
}

func NewValidator() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	for tag, text := range messages {
		err := validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error {
				return t.Add(tag, text, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, err := t.T(tag, fe.Field(), fe.Param())
				if err != nil {
					return fe.Error()
				}
				return msg
			})
		if err != nil {
			return nil, fmt.Errorf("failed to register %q translation: %w", tag, err)
		}
	}

	return &Validator{validate: validate, trans: trans}, nil
}

// Decode reads the request body into dst and validates it. Every failure is
// a validation APIError. An empty body is treated as an empty object.
func (v *Validator) Decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apierrors.NewErrValidation(map[string][]string{
			"body": {"The request body could not be read."},
		})
	}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return decodeError(err)
		}
	}

	return v.Struct(dst)
}

// Struct validates an already decoded request.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fe.Translate(v.trans))
	}
	return apierrors.NewErrValidation(fields)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierrors.NewErrValidation(map[string][]string{
			typeErr.Field: {fmt.Sprintf("The %s must be a string.", typeErr.Field)},
		})
	}
	return apierrors.NewErrValidation(map[string][]string{
		"body": {"The request body must be valid JSON."},
	})
}

// looseString accepts a JSON string or number, so a code sent as 123456
// compares equal to "123456".
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeOf("")}
	}
	*s = looseString(n.String())
	return nil
}
