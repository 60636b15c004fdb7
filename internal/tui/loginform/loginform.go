// ABOUTME: Interactive credential forms built with huh
// ABOUTME: Collects login, signup and captcha input before any request is sent

package loginform

import (
	"errors"
	"strings"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user cancels a form
var ErrAborted = errors.New("form aborted")

// Login holds the values collected by the login form
type Login struct {
	Identifier string
	Password   string
	Remember   bool
	Recent     []string // identifiers offered as suggestions, most recent first
}

// Signup holds the values collected by the signup form
type Signup struct {
	Username string
	Email    string
	FullName string
	Phone    string
	Password string
	Remember bool
}

// Request converts the form values into a signup request
func (s Signup) Request() authclient.SignupRequest {
	return authclient.SignupRequest{
		Username: strings.TrimSpace(s.Username),
		Email:    strings.TrimSpace(s.Email),
		Password: s.Password,
		FullName: strings.TrimSpace(s.FullName),
		Phone:    strings.TrimSpace(s.Phone),
	}
}

// createTheme returns the huh theme matching the dashboard palette
func createTheme() *huh.Theme {
	t := huh.ThemeBase()

	red := lipgloss.Color("#DC2626")    // Ketchup - primary
	yellow := lipgloss.Color("#FBBF24") // Fries - accents
	gray := lipgloss.Color("#9CA3AF")   // Gray-400 - muted
	light := lipgloss.Color("#E5E7EB")  // Gray-200 - text
	errRed := lipgloss.Color("#F87171") // Red-400 - errors

	t.Group.Title = lipgloss.NewStyle().
		Foreground(red).
		Bold(true).
		MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().
		Foreground(gray).
		MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(red)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(yellow).
		Bold(true)
	t.Focused.Description = lipgloss.NewStyle().
		Foreground(gray)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(errRed).
		SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(errRed)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(yellow)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(light)
	t.Focused.FocusedButton = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(red).
		Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().
		Foreground(gray).
		Padding(0, 1)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Focused.Base.BorderStyle(lipgloss.HiddenBorder())

	return t
}

// NewLogin builds the login form writing into v. An empty identifier is
// prefilled with the most recent one.
func NewLogin(v *Login) *huh.Form {
	if v.Identifier == "" && len(v.Recent) > 0 {
		v.Identifier = v.Recent[0]
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username or email").
				Suggestions(v.Recent).
				Value(&v.Identifier).
				Validate(required("username or email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password).
				Validate(required("password")),
			huh.NewConfirm().
				Title("Remember me on this machine?").
				Affirmative("Yes").
				Negative("No").
				Value(&v.Remember),
		).Title("Sign in").
			Description("Staff, admin and customer accounts all sign in here"),
	).WithTheme(createTheme())
}

// NewSignup builds the signup form writing into v. The password field applies
// the same policy the client enforces before submitting.
func NewSignup(v *Signup) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&v.Username).
				Validate(required("username")),
			huh.NewInput().
				Title("Email").
				Value(&v.Email).
				Validate(required("email")),
			huh.NewInput().
				Title("Full name").
				Description("Optional").
				Value(&v.FullName),
			huh.NewInput().
				Title("Phone").
				Description("Optional").
				Value(&v.Phone),
		).Title("Create an account"),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				Description("At least 8 characters with an upper-case letter, a digit and a symbol").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password).
				Validate(validatePassword),
			huh.NewConfirm().
				Title("Remember me on this machine?").
				Value(&v.Remember),
		).Title("Choose a password"),
	).WithTheme(createTheme())
}

// NewCaptcha asks for a captcha token after the server demands one
func NewCaptcha(token *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Captcha token").
				Description("Too many failed attempts. Solve the captcha and paste its token").
				Value(token).
				Validate(required("captcha token")),
		),
	).WithTheme(createTheme())
}

// Run runs form to completion, mapping a user abort to ErrAborted
func Run(form *huh.Form) error {
	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func validatePassword(s string) error {
	if msg := authclient.PasswordPolicy(s); msg != "" {
		return errors.New("password " + msg)
	}
	return nil
}
