// ABOUTME: Tests for the TUI app model
// ABOUTME: Drives Update with synthetic messages and checks the rendered frame

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls++
	return f.err
}

func lead() models.UserIdentity {
	return models.UserIdentity{ID: "12", Username: "crew.lead", Role: models.RoleStaff, DisplayName: "Crew Lead"}
}

func TestAppInitialState(t *testing.T) {
	app := New(lead(), &fakeRefresher{})

	if app.channel.State != models.ChannelConnecting {
		t.Errorf("expected connecting, got %s", app.channel.State)
	}
	if !strings.Contains(app.View(), "Loading dashboard for Crew Lead") {
		t.Errorf("expected loading view\n%s", app.View())
	}
}

func TestAppSnapshotMsg(t *testing.T) {
	app := New(lead(), &fakeRefresher{})
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	snap := models.NewSnapshot(models.RoleStaff)
	snap.Version = 1
	snap.Collections["orders"] = []models.Record{{ID: "42", Status: "completed"}}
	app.Update(SnapshotMsg{Snapshot: snap})

	view := app.View()
	if strings.Contains(view, "Loading") {
		t.Error("should not show loading after snapshot")
	}
	if !strings.Contains(view, "#42") {
		t.Errorf("expected order row\n%s", view)
	}
	if !strings.Contains(view, "Updated just now") {
		t.Errorf("expected update time in footer\n%s", view)
	}
}

func TestAppChannelMsg(t *testing.T) {
	app := New(lead(), &fakeRefresher{})
	app.Update(ChannelMsg{Conn: models.ChannelConnection{
		State:     models.ChannelDisconnected,
		LastError: errors.New("realtime channel unavailable"),
	}})

	view := app.View()
	if !strings.Contains(view, "OFFLINE") {
		t.Errorf("expected offline badge\n%s", view)
	}
	if !strings.Contains(view, "realtime channel unavailable") {
		t.Errorf("expected channel error\n%s", view)
	}
}

func TestAppRefreshKey(t *testing.T) {
	r := &fakeRefresher{err: errors.New("backend down")}
	app := New(lead(), r)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("expected refresh command")
	}
	if !app.refreshing {
		t.Error("expected refreshing flag")
	}

	// a second press while refreshing is ignored
	if _, again := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); again != nil {
		t.Error("expected no command while a refresh is in flight")
	}

	app.Update(cmd())
	if r.calls != 1 {
		t.Errorf("expected 1 refresh, got %d", r.calls)
	}
	if app.refreshing {
		t.Error("refreshing flag should clear")
	}
	if !strings.Contains(app.View(), "Refresh failed: backend down") {
		t.Errorf("expected refresh error\n%s", app.View())
	}
}

func TestAppSignedOutQuits(t *testing.T) {
	app := New(lead(), &fakeRefresher{})
	_, cmd := app.Update(SignedOutMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !app.SignedOut() {
		t.Error("expected SignedOut to report true")
	}
}

func TestAppQuitKey(t *testing.T) {
	app := New(lead(), &fakeRefresher{})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{time.Second, "just now"},
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
	}
	for _, tt := range tests {
		if got := formatTimeSince(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("formatTimeSince(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestFrameFitsWidth(t *testing.T) {
	app := New(lead(), &fakeRefresher{})
	app.Update(tea.WindowSizeMsg{Width: 90, Height: 30})

	lines := strings.Split(app.View(), "\n")
	if w := lipgloss.Width(lines[0]); w != 90 {
		t.Errorf("header width = %d, want 90\n%s", w, lines[0])
	}
	if !strings.HasPrefix(lines[0], "╭─") || !strings.HasSuffix(lines[0], "─╮") {
		t.Errorf("unexpected header %q", lines[0])
	}
}
