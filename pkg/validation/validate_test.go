package validation

import (
	"testing"

	"github.com/asaskevich/govalidator"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name string `valid:"required,notblank~name:blank,nocontrol~name:control"`
}

func TestCustomValidations(t *testing.T) {
	RegisterCustomValidations()

	ok, err := govalidator.ValidateStruct(sample{Name: "report.pdf"})
	assert.True(t, ok)
	assert.NoError(t, err)

	_, err = govalidator.ValidateStruct(sample{Name: "   "})
	assert.EqualError(t, err, "name:blank")

	_, err = govalidator.ValidateStruct(sample{Name: "bad\r\nname"})
	assert.EqualError(t, err, "name:control")
}
