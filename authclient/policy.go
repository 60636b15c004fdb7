// ABOUTME: Client-side signup and password policy checks
// ABOUTME: Failures are reported per field before any request is sent

package authclient

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// PasswordPolicy returns a description of what the password is missing, or "" when it passes
func PasswordPolicy(password string) string {
	var missing []string
	if len([]rune(password)) < MinPasswordLength {
		missing = append(missing, "at least 8 characters")
	}

	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper {
		missing = append(missing, "an upper-case letter")
	}
	if !digit {
		missing = append(missing, "a digit")
	}
	if !symbol {
		missing = append(missing, "a symbol")
	}

	if len(missing) == 0 {
		return ""
	}
	return "must contain " + strings.Join(missing, ", ")
}

// ValidateSignup checks required fields, email shape and password policy
func ValidateSignup(req SignupRequest) error {
	fields := map[string]string{}

	if req.Username == "" {
		fields["username"] = "is required"
	}
	if req.Email == "" {
		fields["email"] = "is required"
	} else if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		fields["email"] = "is not a valid address"
	}
	if msg := PasswordPolicy(req.Password); msg != "" {
		fields["password"] = msg
	}

	if len(fields) == 0 {
		return nil
	}
	return &models.Error{
		Kind:    models.ErrValidationFailed,
		Message: "signup form is invalid",
		Fields:  fields,
	}
}
