package server

import (
	"encoding/json"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/leebenson/conform"
	"github.com/pkg/errors"
	errs "github.com/techagentng/quizchat/errors"
)

var trans ut.Translator

func init() {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		_ = enTranslations.RegisterDefaultTranslations(v, trans)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// decode reads a JSON body into v, trims it per its conform tags and then
// runs the binding validators. Errors come back translated.
func decode(c *gin.Context, v interface{}) *errs.Error {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validation("request body is required")
		}
		return errs.Validation("invalid request body: " + err.Error())
	}
	if err := conform.Strings(v); err != nil {
		return errs.Validation(err.Error())
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return errs.Validation(translateError(err))
	}
	return nil
}

func translateError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return strings.Join(msgs, "; ")
}
