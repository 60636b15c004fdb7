// ABOUTME: Maps typed failures onto exit codes and user-facing error output
// ABOUTME: Exit codes: 1 usage or validation, 2 service or transport, 3 authentication

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/loginform"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/session"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitService = 2
	exitAuth    = 3
)

// exitCode classifies err
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, session.ErrInFlight) || errors.Is(err, loginform.ErrAborted) {
		return exitUsage
	}
	switch models.KindOf(err) {
	case models.ErrValidationFailed:
		return exitUsage
	case models.ErrInvalidCredentials, models.ErrInvalidToken, models.ErrCaptchaRequired,
		models.ErrUnauthorized, models.ErrNoCredential:
		return exitAuth
	default:
		return exitService
	}
}

type errorOutput struct {
	Error             string            `json:"error"`
	Message           string            `json:"message"`
	Fields            map[string]string `json:"fields,omitempty"`
	RetryAfterSeconds int               `json:"retryAfterSeconds,omitempty"`
}

// reportError writes err for a human or as JSON and returns the exit code
func reportError(w io.Writer, err error) int {
	code := exitCode(err)
	e, _ := models.AsError(err)

	if IsJSONOutput() {
		out := errorOutput{Error: string(models.KindOf(err)), Message: err.Error()}
		if e != nil {
			out.Message = e.Message
			out.Fields = e.Fields
			out.RetryAfterSeconds = e.RetryAfterSeconds
		}
		if out.Error == "" {
			out.Error = "error"
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return code
	}

	if e == nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return code
	}

	fmt.Fprintf(w, "Error: %s\n", e.Message)
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, e.Fields[f])
	}
	switch e.Kind {
	case models.ErrRateLimited:
		if e.RetryAfterSeconds > 0 {
			fmt.Fprintf(w, "Try again in %ds.\n", e.RetryAfterSeconds)
		}
	case models.ErrCaptchaRequired:
		fmt.Fprintln(w, "Solve the captcha and pass its token with --captcha.")
	case models.ErrUnauthorized, models.ErrNoCredential:
		fmt.Fprintln(w, "Run 'fastfood login' to sign in.")
	}
	return code
}

func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
