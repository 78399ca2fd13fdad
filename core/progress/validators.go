package progress

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	questionTypeTag  = "questiontype"
	questionTypeText = "invalid question type"
)

func init() {
	_ = core.Validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(questionTypeTag, questionTypeText)
}

// questionTypeValidation checks that the provided type is in AllQuestionTypes.
func questionTypeValidation(fl validator.FieldLevel) bool {
	qt := fl.Field().String()
	for _, t := range AllQuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}
