package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// emailShape is the loose address check used by the OTP flow: something@something.tld.
var emailShape = regexp.MustCompile(`\S+@\S+\.\S+`)

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// EmailShape reports whether s looks like an email address.
func EmailShape(s string) bool {
	return emailShape.MatchString(s)
}

// NormalizeEmail trims and lowercases an address for use as a lookup key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
