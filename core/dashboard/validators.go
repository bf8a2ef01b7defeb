package dashboard

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/stats"
)

var (
	intervalTag  = "interval"
	intervalText = "must be one of: week, month"
)

// InitValidators registers the dashboard validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(intervalTag, func(fl validator.FieldLevel) bool {
		_, err := stats.ParseInterval(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(validate, translator, intervalTag, intervalText)
}
