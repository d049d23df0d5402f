package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return describeValidationError(err)
	}
	if err := c.validatePosition(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePosition() error {
	switch c.Position.Source {
	case "file", "gpx":
		if c.Position.Path == "" {
			return fmt.Errorf("position.path must be set when position.source is %q", c.Position.Source)
		}
	case "http":
		if c.Paths.APIBind == "" {
			return errors.New("paths.api_bind must be set when position.source is \"http\"")
		}
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.BackupIntervalSeconds < c.Tracking.TimerIntervalSeconds {
		return errors.New("tracking.backup_interval_seconds must not be shorter than tracking.timer_interval_seconds")
	}
	return nil
}

// describeValidationError turns the first validator failure into a message
// keyed by the TOML path of the offending field.
func describeValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := fieldErrs[0]
	key := fe.Namespace()
	if idx := strings.Index(key, "."); idx >= 0 {
		key = key[idx+1:]
	}
	switch fe.Tag() {
	case "gt":
		return fmt.Errorf("%s must be greater than %s", key, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be at least %s", key, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s (got %q)", key, strings.ReplaceAll(fe.Param(), " ", ", "), fmt.Sprint(fe.Value()))
	case "required":
		return fmt.Errorf("%s must be set", key)
	case "url":
		return fmt.Errorf("%s must be an absolute URL", key)
	default:
		return fmt.Errorf("%s failed %q validation", key, fe.Tag())
	}
}
