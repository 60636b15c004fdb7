// ABOUTME: Account recovery commands: forgot-password, reset-password, verify-email, resend-verification
// ABOUTME: Each prints the backend acknowledgement or a classified error

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/spf13/cobra"
)

var (
	forgotCaptcha string
	resetToken    string
)

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <username-or-email>",
	Short: "Request a password reset link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runAck(ctx, os.Stdout, cfg, func(ctx context.Context, a *app) (authclient.Ack, error) {
				return a.sessions.RequestPasswordReset(ctx, args[0], forgotCaptcha)
			})
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password with an emailed reset token",
	Long:  `Set a new password. The password is read from stdin so it stays out of shell history.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runResetPassword(ctx, os.Stdout, os.Stdin, cfg, resetToken)
		})
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email <token>",
	Short: "Confirm an email address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runAck(ctx, os.Stdout, cfg, func(ctx context.Context, a *app) (authclient.Ack, error) {
				return a.sessions.VerifyEmail(ctx, args[0])
			})
		})
	},
}

var resendVerificationCmd = &cobra.Command{
	Use:   "resend-verification <username-or-email>",
	Short: "Send a fresh verification email",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runAck(ctx, os.Stdout, cfg, func(ctx context.Context, a *app) (authclient.Ack, error) {
				return a.sessions.ResendVerification(ctx, args[0])
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(forgotPasswordCmd, resetPasswordCmd, verifyEmailCmd, resendVerificationCmd)

	forgotPasswordCmd.Flags().StringVar(&forgotCaptcha, "captcha", "", "Captcha token, when the backend demands one")
	resetPasswordCmd.Flags().StringVar(&resetToken, "token", "", "Reset token from the email")
}

// runAck runs an acknowledgement-only operation and prints its message
func runAck(ctx context.Context, w io.Writer, cfg *config.Config, op func(context.Context, *app) (authclient.Ack, error)) int {
	a, err := newApp(cfg, false)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	ack, err := op(ctx, a)
	if err != nil {
		return reportError(w, err)
	}
	if IsJSONOutput() {
		printJSON(w, ack)
	} else {
		fmt.Fprintln(w, ack.Message)
	}
	return exitOK
}

func runResetPassword(ctx context.Context, w io.Writer, in io.Reader, cfg *config.Config, token string) int {
	password, err := readPassword(in)
	if err != nil {
		return reportError(w, err)
	}
	return runAck(ctx, w, cfg, func(ctx context.Context, a *app) (authclient.Ack, error) {
		return a.sessions.ResetPassword(ctx, token, password)
	})
}
