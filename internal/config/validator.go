package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/docdesk/docdesk/internal/domain/auth"
)

// RegisterCustomValidators registers docdesk-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("argon2id_hash", validateArgon2idHash); err != nil {
		return fmt.Errorf("failed to register argon2id_hash validator: %w", err)
	}
	return nil
}

// validateArgon2idHash accepts a PHC-encoded argon2id hash.
func validateArgon2idHash(fl validator.FieldLevel) bool {
	return auth.IsAccessKeyHash(fl.Field().String())
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages if validation fails.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if _, err := c.Backend.TimeoutDuration(); err != nil {
		return err
	}
	if err := c.validateTokenPath(); err != nil {
		return err
	}
	if c.Tracing.Enabled {
		if _, err := time.ParseDuration(c.Tracing.MetricInterval); err != nil {
			return fmt.Errorf("tracing.metric_interval: %w", err)
		}
	}
	return nil
}

// validateTokenPath requires a path for the persistent store kinds.
func (c *Config) validateTokenPath() error {
	switch c.TokenStore.Kind {
	case TokenStoreFile, TokenStoreSQLite:
		if c.TokenStore.Path == "" {
			return fmt.Errorf("token_store.path is required for kind %q", c.TokenStore.Kind)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "argon2id_hash":
		return fmt.Sprintf("%s must be an argon2id hash (see 'docdesk hash-key')", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
