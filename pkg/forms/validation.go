// Package forms validates the fields of a wizard step.
//
// Rules are read from the HTML constraint attributes of each field
// (required, type, minlength, maxlength, pattern, min, max) and may be
// extended per field name. StepValidator adapts them to wizard.Validator.
package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator checks one field value.
type Validator interface {
	// Validate returns an error when value is not acceptable.
	Validate(value string) error

	// Message is the user-facing explanation.
	Message() string
}

// RequiredValidator rejects blank values.
type RequiredValidator struct{}

func (RequiredValidator) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("required")
	}
	return nil
}

func (RequiredValidator) Message() string {
	return "This field is required"
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// EmailValidator checks the address format of non-empty values.
type EmailValidator struct{}

func (EmailValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	if !emailRegex.MatchString(value) {
		return errors.New("invalid email")
	}
	return nil
}

func (EmailValidator) Message() string {
	return "Please enter a valid email address"
}

var urlRegex = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+(:\d+)?(/.*)?$`)

// URLValidator checks http(s) URLs.
type URLValidator struct{}

func (URLValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	if !urlRegex.MatchString(value) {
		return errors.New("invalid URL")
	}
	return nil
}

func (URLValidator) Message() string {
	return "Please enter a valid URL"
}

// MinLengthValidator counts runes, not bytes.
type MinLengthValidator struct {
	Min int
}

func (v MinLengthValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	if utf8.RuneCountInString(value) < v.Min {
		return fmt.Errorf("too short (min %d)", v.Min)
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	return fmt.Sprintf("Must be at least %d characters", v.Min)
}

// MaxLengthValidator counts runes, not bytes.
type MaxLengthValidator struct {
	Max int
}

func (v MaxLengthValidator) Validate(value string) error {
	if utf8.RuneCountInString(value) > v.Max {
		return fmt.Errorf("too long (max %d)", v.Max)
	}
	return nil
}

func (v MaxLengthValidator) Message() string {
	return fmt.Sprintf("Must be at most %d characters", v.Max)
}

// PatternValidator matches the whole value, like the HTML pattern attribute.
type PatternValidator struct {
	re  *regexp.Regexp
	Msg string
}

func (v PatternValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	if !v.re.MatchString(value) {
		return errors.New("pattern mismatch")
	}
	return nil
}

func (v PatternValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Invalid format"
}

// RangeValidator bounds numeric values. Nil bounds are open.
type RangeValidator struct {
	Min *float64
	Max *float64
}

func (v RangeValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return errors.New("not a number")
	}
	if v.Min != nil && num < *v.Min {
		return fmt.Errorf("must be at least %v", *v.Min)
	}
	if v.Max != nil && num > *v.Max {
		return fmt.Errorf("must be at most %v", *v.Max)
	}
	return nil
}

func (v RangeValidator) Message() string {
	switch {
	case v.Min != nil && v.Max != nil:
		return fmt.Sprintf("Must be between %v and %v", *v.Min, *v.Max)
	case v.Min != nil:
		return fmt.Sprintf("Must be at least %v", *v.Min)
	case v.Max != nil:
		return fmt.Sprintf("Must be at most %v", *v.Max)
	}
	return "Must be a number"
}

// CustomValidator wraps a function.
type CustomValidator struct {
	Fn  func(value string) error
	Msg string
}

func (v CustomValidator) Validate(value string) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

// Required returns a required validator.
func Required() Validator {
	return RequiredValidator{}
}

// Email returns an email validator.
func Email() Validator {
	return EmailValidator{}
}

// URL returns a URL validator.
func URL() Validator {
	return URLValidator{}
}

// MinLength returns a minimum length validator.
func MinLength(n int) Validator {
	return MinLengthValidator{Min: n}
}

// MaxLength returns a maximum length validator.
func MaxLength(n int) Validator {
	return MaxLengthValidator{Max: n}
}

// Pattern compiles an HTML-style pattern, anchored at both ends.
func Pattern(pattern string, msg ...string) (Validator, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	v := PatternValidator{re: re}
	if len(msg) > 0 {
		v.Msg = msg[0]
	}
	return v, nil
}

// Range returns a numeric range validator.
func Range(min, max *float64) Validator {
	return RangeValidator{Min: min, Max: max}
}

// Custom returns a custom validator.
func Custom(fn func(value string) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}
