// Handles all sorts of custom data validations happening in Dropzone.

package validation

import (
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"
)

// This function registers custom validation tags to be used as annotations in struct.
// After registering and adding the annotation, govalidator.ValidateStruct will trigger the validation.
func RegisterCustomValidations() {
	// This custom validation fails strings made of whitespace only.
	govalidator.TagMap["notblank"] = govalidator.Validator(func(str string) bool {
		return strings.TrimSpace(str) != ""
	})
	// This custom validation rejects control characters, file names end up in headers.
	govalidator.TagMap["nocontrol"] = govalidator.Validator(func(str string) bool {
		return strings.IndexFunc(str, unicode.IsControl) == -1
	})
}
