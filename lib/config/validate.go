// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bureau-foundation/p4fs/lib/sealed"
)

// validate is the singleton validator instance. Field names in
// reports are the YAML keys.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, fieldError := range validationErrors {
			errs = append(errs, formatFieldError(fieldError))
		}
	}

	if c.Snapshot.Record != "" && c.Snapshot.Replay != "" {
		errs = append(errs, fmt.Errorf("snapshot.record and snapshot.replay are mutually exclusive"))
	}
	if c.Depot.User == "" && c.Snapshot.Replay == "" {
		errs = append(errs, fmt.Errorf("depot.user is required"))
	}
	if len(c.Snapshot.Recipients) > 0 && c.Snapshot.Record == "" {
		errs = append(errs, fmt.Errorf("snapshot.recipients requires snapshot.record"))
	}
	for index, recipient := range c.Snapshot.Recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			errs = append(errs, fmt.Errorf("snapshot.recipients[%d]: %w", index, err))
		}
	}
	if c.Snapshot.Identity != "" && c.Snapshot.Replay == "" {
		errs = append(errs, fmt.Errorf("snapshot.identity requires snapshot.replay"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// formatFieldError renders one validator failure with the dotted YAML
// path of the field, e.g. "mount.attribute_strategy".
func formatFieldError(fieldError validator.FieldError) error {
	path := fieldError.Namespace()
	if _, rest, found := strings.Cut(path, "."); found {
		path = rest
	}

	switch fieldError.Tag() {
	case "required":
		return fmt.Errorf("%s is required", path)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s (got %q)", path, fieldError.Param(), fieldError.Value())
	case "gte":
		return fmt.Errorf("%s must not be negative (got %v)", path, fieldError.Value())
	default:
		return fmt.Errorf("%s: validation failed on %q (value: %v)", path, fieldError.Tag(), fieldError.Value())
	}
}
