// Package auth contains the domain types and logic for client-side authentication:
// login and registration payloads, bearer token inspection and the console access key.
package auth

import "github.com/docdesk/docdesk/internal/domain/session"

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the signup payload.
// ConfirmPassword is checked locally and never sent.
type Registration struct {
	FirstName       string `json:"firstName" validate:"min=2,max=35,alphaname"`
	LastName        string `json:"lastName" validate:"min=2,max=35,alphaname"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"min=6,max=100"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
	Country         string `json:"country" validate:"required"`
	AgreeToTerms    bool   `json:"agreeToTerms" validate:"eq=true"`
}

// ProfileUpdate is a partial user update. Empty fields are omitted.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty" validate:"omitempty,min=2,max=35,alphaname"`
	LastName  string `json:"lastName,omitempty" validate:"omitempty,min=2,max=35,alphaname"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Country   string `json:"country,omitempty"`
}

// PasswordChange is the change-password payload.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"min=6,max=100"`
}

// Grant is what the backend returns from login and refresh: a bearer token
// and the user it belongs to.
type Grant struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}
