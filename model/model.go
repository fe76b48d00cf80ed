package model

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

var httpURLPattern = regexp.MustCompile(`^https?://[^/?#\s]+`)

// HTTPURL accepts absolute http(s) urls with a host. Empty values pass, so pair it
// with validation.Required where the url is mandatory.
var HTTPURL = validation.By(func(value interface{}) error {
	return validation.Validate(value,
		is.RequestURL.Error("must be an http(s) url"),
		validation.Match(httpURLPattern).Error("must be an http(s) url"),
	)
})

// GenerateUUIDWithSuffix generates a UUID prefixed with the module name, e.g. gen_<uuid>.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}
