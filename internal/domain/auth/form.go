package auth

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// alphaNamePattern accepts one or two alphabetic words separated by a single space.
var alphaNamePattern = regexp.MustCompile(`^[A-Za-z]+(?:\s[A-Za-z]+)?$`)

var (
	formValidator     *validator.Validate
	formValidatorOnce sync.Once
)

func validate() *validator.Validate {
	formValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Registration cannot fail for a static tag name and function.
		_ = v.RegisterValidation("alphaname", func(fl validator.FieldLevel) bool {
			return alphaNamePattern.MatchString(fl.Field().String())
		})
		formValidator = v
	})
	return formValidator
}

// IsAlphaName reports whether s is one or two alphabetic words.
func IsAlphaName(s string) bool {
	return alphaNamePattern.MatchString(s)
}

// Validate checks the login payload.
func (c Credentials) Validate() error {
	return firstError(validate().Struct(c))
}

// Validate checks the signup payload.
func (r Registration) Validate() error {
	return firstError(validate().Struct(r))
}

// Validate checks the profile update.
func (p ProfileUpdate) Validate() error {
	return firstError(validate().Struct(p))
}

// Validate checks the password change.
func (p PasswordChange) Validate() error {
	return firstError(validate().Struct(p))
}

// firstError converts the first field failure into a *session.ValidationError
// with the message the signup and login forms show.
func firstError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &session.ValidationError{Message: err.Error()}
	}
	e := verrs[0]
	return &session.ValidationError{Field: jsonName(e.StructField()), Message: fieldMessage(e)}
}

func fieldMessage(e validator.FieldError) string {
	switch e.StructField() {
	case "FirstName":
		if e.Tag() == "alphaname" {
			return "First name must contain only letters"
		}
		return "First name must be 2-35 characters"
	case "LastName":
		if e.Tag() == "alphaname" {
			return "Last name must contain only letters"
		}
		return "Last name must be 2-35 characters"
	case "Email":
		return "Please enter a valid email address"
	case "Password":
		if e.Tag() == "required" {
			return "Password is required"
		}
		return "Password must be at least 6 characters"
	case "NewPassword":
		return "New password must be at least 6 characters"
	case "CurrentPassword":
		return "Current password is required"
	case "ConfirmPassword":
		return "Passwords do not match"
	case "Country":
		return "Please select your country"
	case "AgreeToTerms":
		return "You must agree to the terms"
	}
	return e.Error()
}

func jsonName(field string) string {
	switch field {
	case "FirstName":
		return "firstName"
	case "LastName":
		return "lastName"
	case "ConfirmPassword":
		return "confirmPassword"
	case "AgreeToTerms":
		return "agreeToTerms"
	case "CurrentPassword":
		return "currentPassword"
	case "NewPassword":
		return "newPassword"
	}
	if field == "" {
		return ""
	}
	return string(field[0]|0x20) + field[1:]
}
