// ABOUTME: Watch command showing the signed-in role's live dashboard
// ABOUTME: Runs the full-screen TUI, or prints one line per change with --plain

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/logger"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/reconciler"
	"github.com/spf13/cobra"
)

var (
	watchPlain   bool
	watchSubject string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the live dashboard for the signed-in role",
	Long: `Show the dashboard for the signed-in role and keep it current from realtime events.

Staff and admins see orders and kitchen tasks; customers see their own orders.
Use --plain for line-oriented output suitable for logs and pipes.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			if !watchPlain && !IsJSONOutput() {
				closeLog, err := logger.InitFile(cfg.ConfigDir)
				if err == nil {
					defer closeLog()
				}
			}
			return runWatch(ctx, os.Stdout, cfg, watchOptions{plain: watchPlain || IsJSONOutput(), subject: watchSubject})
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print one line per update instead of the full-screen view")
	watchCmd.Flags().StringVar(&watchSubject, "subject", "", "Only follow events for this subject id (customers default to themselves)")
}

type watchOptions struct {
	plain   bool
	subject string
}

func runWatch(ctx context.Context, w io.Writer, cfg *config.Config, opts watchOptions) int {
	a, err := newApp(cfg, true)
	if err != nil {
		return reportError(w, err)
	}
	defer a.Close()

	sess, err := a.sessions.Require()
	if err != nil {
		return reportError(w, err)
	}
	role := sess.User.Role
	if reconciler.Scope(role) == "" {
		return reportError(w, models.NewError(models.ErrUnauthorized, fmt.Sprintf("role %q has no dashboard", role)))
	}

	subject := opts.subject
	if subject == "" && role == models.RoleCustomer {
		subject = sess.User.ID
	}

	rec, unbind := newWatchReconciler(a, role, subject)
	defer unbind()
	defer rec.Close()

	if opts.plain {
		return watchPlainLines(ctx, w, a, rec)
	}

	if _, err := a.sessions.Resume(ctx); err != nil {
		return reportError(w, err)
	}
	go func() {
		if err := rec.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Initial dashboard refresh failed", "role", role, "error", err)
		}
	}()

	err = tui.Run(tui.Sources{
		Identity: sess.User,
		Snapshot: rec,
		Channel:  a.channel,
		Sessions: a.sessions,
	})
	if errors.Is(err, tui.ErrSignedOut) {
		return reportError(w, models.NewError(models.ErrUnauthorized, "session ended"))
	}
	if err != nil {
		return reportError(w, err)
	}
	return exitOK
}

// newWatchReconciler builds the dashboard reconciler for role. It is closed before
// Invalidate returns; the returned func drops that registration.
func newWatchReconciler(a *app, role models.Role, subject string) (*reconciler.Reconciler, func()) {
	rec := reconciler.New(role, reconciler.NewHTTPSource(a.api, a.sessions), a.channel, reconciler.WithSelection(subject))
	return rec, a.sessions.OnInvalidate(rec.Close)
}

// watchPlainLines prints channel transitions and snapshots until ctx ends or the session is invalidated
func watchPlainLines(ctx context.Context, w io.Writer, a *app, rec *reconciler.Reconciler) int {
	lines := make(chan string, 64)
	emit := func(s string) {
		select {
		case lines <- s:
		default: // a stalled writer must not block the reader goroutine
		}
	}

	a.channel.OnStateChange(func(c models.ChannelConnection) { emit(formatChannelLine(c)) })
	rec.OnChange(func(s models.Snapshot) { emit(formatSnapshotLine(s)) })

	ended := make(chan struct{})
	var once sync.Once
	remove := a.sessions.OnInvalidate(func() { once.Do(func() { close(ended) }) })
	defer remove()

	if _, err := a.sessions.Resume(ctx); err != nil {
		return reportError(w, err)
	}
	if err := rec.Start(ctx); err != nil {
		// the snapshot's status line already reports it; keep watching for events
		emit("refresh failed: " + err.Error())
	}

	for {
		select {
		case line := <-lines:
			fmt.Fprintln(w, line)
		case <-ended:
			drain(w, lines)
			return reportError(w, models.NewError(models.ErrUnauthorized, "session ended"))
		case <-ctx.Done():
			drain(w, lines)
			return exitOK
		}
	}
}

func drain(w io.Writer, lines chan string) {
	for {
		select {
		case line := <-lines:
			fmt.Fprintln(w, line)
		default:
			return
		}
	}
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

// formatChannelLine describes a channel transition
func formatChannelLine(c models.ChannelConnection) string {
	s := fmt.Sprintf("[%s] channel %s", stamp(), c.State)
	if c.RetryCount > 0 {
		s += fmt.Sprintf(" (attempt %d)", c.RetryCount)
	}
	if c.LastError != nil {
		s += ": " + c.LastError.Error()
	}
	return s
}

// formatSnapshotLine summarizes a snapshot on one line
func formatSnapshotLine(s models.Snapshot) string {
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{fmt.Sprintf("[%s] v%d", stamp(), s.Version)}
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(s.Collections[name])))
	}
	if len(s.Stale) > 0 {
		keys := make([]string, 0, len(s.Stale))
		for k := range s.Stale {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "stale="+strings.Join(keys, ","))
	}
	if s.Status != "" {
		parts = append(parts, "status="+s.Status)
	}
	return strings.Join(parts, " ")
}
