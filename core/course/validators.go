package course

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	levelTag  = "courselevel"
	levelText = "invalid course level"
)

func init() {
	_ = core.Validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(levelTag, levelText)
}

// levelValidation checks that the provided level is in AllLevels.
func levelValidation(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	for _, l := range AllLevels {
		if level == l {
			return true
		}
	}
	return false
}
