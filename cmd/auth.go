// ABOUTME: Sign-in commands: login, signup, logout and whoami
// ABOUTME: Prompts with interactive forms when credentials are not given as flags

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/loginform"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/recentlogins"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/session"
	"github.com/spf13/cobra"
)

type loginOptions struct {
	identifier    string
	password      string
	passwordStdin bool
	remember      bool
	captcha       string
}

type signupOptions struct {
	username      string
	email         string
	fullName      string
	phone         string
	password      string
	passwordStdin bool
	remember      bool
}

var (
	loginOpts  loginOptions
	signupOpts signupOptions
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the restaurant backend",
	Long: `Sign in with a username or email. Without --remember the session lasts only for
the current login session of this machine.

Exit codes:
  0 - Signed in
  1 - Missing or invalid input
  2 - Backend unavailable or rate limited
  3 - Wrong credentials or captcha required`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runLogin(ctx, os.Stdout, os.Stdin, cfg, loginOpts)
		})
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a customer account",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runSignup(ctx, os.Stdout, os.Stdin, cfg, signupOpts)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runLogout(ctx, os.Stdout, cfg)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runWhoami(os.Stdout, cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVarP(&loginOpts.identifier, "user", "u", "", "Username or email")
	loginCmd.Flags().BoolVar(&loginOpts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().BoolVar(&loginOpts.remember, "remember", false, "Keep the session across restarts")
	loginCmd.Flags().StringVar(&loginOpts.captcha, "captcha", "", "Captcha token, when the backend demands one")

	signupCmd.Flags().StringVar(&signupOpts.username, "username", "", "Username")
	signupCmd.Flags().StringVar(&signupOpts.email, "email", "", "Email address")
	signupCmd.Flags().StringVar(&signupOpts.fullName, "full-name", "", "Full name")
	signupCmd.Flags().StringVar(&signupOpts.phone, "phone", "", "Phone number")
	signupCmd.Flags().BoolVar(&signupOpts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	signupCmd.Flags().BoolVar(&signupOpts.remember, "remember", false, "Keep the session across restarts")
}

// runCommand loads configuration, installs signal handling and exits with fn's code
func runCommand(fn func(ctx context.Context, cfg *config.Config) int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}

	if code := fn(ctx, cfg); code != exitOK {
		cancel()
		os.Exit(code)
	}
}

// readPassword reads the first line of r
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func persistenceFor(remember bool) models.Persistence {
	if remember {
		return models.PersistenceDurable
	}
	return models.PersistenceEphemeral
}

// signedIn is the JSON shape printed after login, signup and whoami
type signedIn struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Route       string `json:"route"`
	Persistence string `json:"persistence"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

func describeSession(sess *models.Session) signedIn {
	out := signedIn{
		ID:          sess.User.ID,
		Username:    sess.User.Username,
		DisplayName: sess.User.DisplayName,
		Role:        string(sess.User.Role),
		Route:       session.RouteForRole(sess.User.Role),
		Persistence: string(sess.Persistence),
	}
	if !sess.ExpiresAt.IsZero() {
		out.ExpiresAt = sess.ExpiresAt.Format(time.RFC3339)
	}
	return out
}

// formatSessionHuman formats a session for the terminal
func formatSessionHuman(sess *models.Session) string {
	d := describeSession(sess)
	s := fmt.Sprintf("Signed in as %s (%s)\nDashboard: %s", d.DisplayName, d.Role, d.Route)
	if d.ExpiresAt != "" {
		s += fmt.Sprintf("\nExpires:   %s", d.ExpiresAt)
	}
	return s
}

func printSession(w io.Writer, sess *models.Session) {
	if IsJSONOutput() {
		printJSON(w, describeSession(sess))
		return
	}
	fmt.Fprintln(w, formatSessionHuman(sess))
}

func runLogin(ctx context.Context, w io.Writer, in io.Reader, cfg *config.Config, opts loginOptions) int {
	if opts.passwordStdin {
		pw, err := readPassword(in)
		if err != nil {
			return reportError(w, err)
		}
		opts.password = pw
	}

	recent := recentlogins.New(cfg.ConfigDir)
	interactive := (opts.identifier == "" || opts.password == "") && !IsJSONOutput()
	if interactive {
		v := loginform.Login{Identifier: opts.identifier, Remember: opts.remember, Recent: recent.List()}
		if err := loginform.Run(loginform.NewLogin(&v)); err != nil {
			return reportError(w, err)
		}
		opts.identifier, opts.password, opts.remember = v.Identifier, v.Password, v.Remember
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	req := authclient.LoginRequest{Identifier: opts.identifier, Password: opts.password, CaptchaToken: opts.captcha}
	sess, err := a.sessions.Establish(ctx, req, persistenceFor(opts.remember))
	if errors.Is(err, models.ErrCaptchaRequired) && interactive {
		if err := loginform.Run(loginform.NewCaptcha(&req.CaptchaToken)); err != nil {
			return reportError(w, err)
		}
		sess, err = a.sessions.Establish(ctx, req, persistenceFor(opts.remember))
	}
	if err != nil {
		return reportError(w, err)
	}

	if err := recent.Add(opts.identifier); err != nil {
		slog.Debug("Could not record recent sign-in", "error", err)
	}
	if !opts.remember && cfg.RuntimeDir == "" {
		slog.Warn("No runtime directory; the session ends with this process. Use --remember to stay signed in")
	}
	printSession(w, sess)
	return exitOK
}

func runSignup(ctx context.Context, w io.Writer, in io.Reader, cfg *config.Config, opts signupOptions) int {
	if opts.passwordStdin {
		pw, err := readPassword(in)
		if err != nil {
			return reportError(w, err)
		}
		opts.password = pw
	}

	v := loginform.Signup{
		Username: opts.username,
		Email:    opts.email,
		FullName: opts.fullName,
		Phone:    opts.phone,
		Password: opts.password,
		Remember: opts.remember,
	}
	if (v.Username == "" || v.Email == "" || v.Password == "") && !IsJSONOutput() {
		if err := loginform.Run(loginform.NewSignup(&v)); err != nil {
			return reportError(w, err)
		}
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	sess, err := a.sessions.EstablishSignup(ctx, v.Request(), persistenceFor(v.Remember))
	if err != nil {
		return reportError(w, err)
	}
	printSession(w, sess)
	return exitOK
}

func runLogout(ctx context.Context, w io.Writer, cfg *config.Config) int {
	a, err := newApp(cfg, false)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	if err := a.sessions.Logout(ctx); err != nil {
		return reportError(w, err)
	}
	if IsJSONOutput() {
		printJSON(w, map[string]string{"message": "Signed out."})
	} else {
		fmt.Fprintln(w, "Signed out.")
	}
	return exitOK
}

func runWhoami(w io.Writer, cfg *config.Config) int {
	a, err := newApp(cfg, false)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	sess, err := a.sessions.Require()
	if err != nil {
		return reportError(w, err)
	}
	printSession(w, sess)
	return exitOK
}
