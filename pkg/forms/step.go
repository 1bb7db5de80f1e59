package forms

import (
	"strconv"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// Field is a form control the step validator can inspect and mark.
type Field interface {
	wizard.Element
	FieldName() string
	FieldType() string
	FieldValue() string
	Attr(name string) (string, bool)
}

// FieldContainer is a step that exposes its fields.
type FieldContainer interface {
	FieldElements() []wizard.Element
}

// Errors maps a field name to its failed rule messages.
type Errors map[string][]string

// Report is delivered after each step validation.
type Report struct {
	Step   wizard.Element
	Valid  bool
	Errors Errors
}

type stepConfig struct {
	invalidMarker string
	extra         map[string][]Validator
	onReport      func(Report)
	logger        logging.Logger
}

// StepOption configures StepValidator.
type StepOption func(*stepConfig)

// WithInvalidMarker sets the class put on invalid fields.
func WithInvalidMarker(name string) StepOption {
	return func(c *stepConfig) {
		c.invalidMarker = name
	}
}

// WithRules adds validators for the named field on top of its attributes.
func WithRules(field string, rules ...Validator) StepOption {
	return func(c *stepConfig) {
		c.extra[field] = append(c.extra[field], rules...)
	}
}

// OnReport registers a callback receiving every validation outcome.
func OnReport(fn func(Report)) StepOption {
	return func(c *stepConfig) {
		c.onReport = fn
	}
}

// WithLogger logs rejected steps and unusable pattern attributes.
func WithLogger(l logging.Logger) StepOption {
	return func(c *stepConfig) {
		c.logger = l
	}
}

// StepValidator returns a wizard.Validator that checks every enabled field
// inside the step. Invalid fields get the invalid marker, valid ones lose
// it. Steps that do not expose fields are always valid.
func StepValidator(opts ...StepOption) wizard.Validator {
	cfg := &stepConfig{
		invalidMarker: "is-invalid",
		extra:         make(map[string][]Validator),
		logger:        logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(step wizard.Element) bool {
		container, ok := step.(FieldContainer)
		if !ok {
			return true
		}

		errs := make(Errors)
		for _, el := range container.FieldElements() {
			f, ok := el.(Field)
			if !ok {
				continue
			}
			if _, disabled := f.Attr("disabled"); disabled {
				continue
			}

			msgs := check(f, cfg)
			if len(msgs) == 0 {
				f.RemoveClass(cfg.invalidMarker)
				continue
			}
			f.AddClass(cfg.invalidMarker)
			errs[f.FieldName()] = append(errs[f.FieldName()], msgs...)
		}

		valid := len(errs) == 0
		if !valid {
			cfg.logger.Debug("step rejected", logging.Int("fields", len(errs)))
		}
		if cfg.onReport != nil {
			cfg.onReport(Report{Step: step, Valid: valid, Errors: errs})
		}
		return valid
	}
}

func check(f Field, cfg *stepConfig) []string {
	var msgs []string
	value := f.FieldValue()
	for _, rule := range append(RulesFor(f, cfg.logger), cfg.extra[f.FieldName()]...) {
		if err := rule.Validate(value); err != nil {
			msgs = append(msgs, rule.Message())
		}
	}
	return msgs
}

// RulesFor derives validators from a field's constraint attributes.
func RulesFor(f Field, logger logging.Logger) []Validator {
	var rules []Validator

	if _, ok := f.Attr("required"); ok {
		rules = append(rules, Required())
	}

	switch f.FieldType() {
	case "email":
		rules = append(rules, Email())
	case "url":
		rules = append(rules, URL())
	case "number", "range":
		min, hasMin := floatAttr(f, "min")
		max, hasMax := floatAttr(f, "max")
		if hasMin || hasMax {
			var lo, hi *float64
			if hasMin {
				lo = &min
			}
			if hasMax {
				hi = &max
			}
			rules = append(rules, Range(lo, hi))
		}
	}

	if n, ok := intAttr(f, "minlength"); ok {
		rules = append(rules, MinLength(n))
	}
	if n, ok := intAttr(f, "maxlength"); ok {
		rules = append(rules, MaxLength(n))
	}
	if p, ok := f.Attr("pattern"); ok && p != "" {
		title, _ := f.Attr("title")
		v, err := Pattern(p, title)
		if err != nil {
			logger.Warn("ignoring pattern", logging.String("field", f.FieldName()), logging.Err(err))
		} else {
			rules = append(rules, v)
		}
	}
	return rules
}

func intAttr(f Field, name string) (int, bool) {
	raw, ok := f.Attr(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func floatAttr(f Field, name string) (float64, bool) {
	raw, ok := f.Attr(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
