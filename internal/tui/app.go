// ABOUTME: Main TUI application model for the live role dashboard
// ABOUTME: Renders reconciled snapshots and channel state pushed from background goroutines

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/dashboard"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/styles"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/widgets"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Minimum terminal dimensions for the frame
const (
	minTerminalWidth  = 60
	minTerminalHeight = 12
)

// ErrSignedOut is returned by Run when the session was invalidated while the dashboard was open
var ErrSignedOut = errors.New("session ended")

// SnapshotMsg carries a new reconciled snapshot
type SnapshotMsg struct {
	Snapshot models.Snapshot
}

// ChannelMsg carries a realtime channel transition
type ChannelMsg struct {
	Conn models.ChannelConnection
}

// SignedOutMsg is sent when the session is invalidated
type SignedOutMsg struct{}

type refreshDoneMsg struct {
	err error
}

type tickMsg time.Time

// Refresher re-fetches the full dashboard
type Refresher interface {
	Refresh(ctx context.Context) error
}

// App is the main TUI model
type App struct {
	identity  models.UserIdentity
	refresher Refresher

	dashboard *dashboard.Dashboard
	spinner   spinner.Model

	snap       *models.Snapshot
	channel    models.ChannelConnection
	lastUpdate time.Time
	refreshing bool
	err        error
	signedOut  bool

	width  int
	height int
}

// New creates a new TUI application for identity's dashboard
func New(identity models.UserIdentity, refresher Refresher) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &App{
		identity:  identity,
		refresher: refresher,
		dashboard: dashboard.New(nil, minTerminalWidth, minTerminalHeight),
		spinner:   s,
		channel:   models.ChannelConnection{State: models.ChannelConnecting},
	}
}

// Init initializes the application
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tick())
}

// Update handles messages and updates state
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(a.contentWidth(), a.contentHeight())
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			if a.refreshing || a.refresher == nil {
				return a, nil
			}
			a.refreshing = true
			a.err = nil
			return a, a.refresh()
		}
		return a, nil

	case SnapshotMsg:
		snap := msg.Snapshot
		a.snap = &snap
		a.lastUpdate = time.Now()
		a.dashboard.Update(a.snap)
		return a, nil

	case ChannelMsg:
		a.channel = msg.Conn
		return a, nil

	case SignedOutMsg:
		a.signedOut = true
		return a, tea.Quit

	case refreshDoneMsg:
		a.refreshing = false
		a.err = msg.err
		return a, nil

	case tickMsg:
		// re-render so "Updated X ago" keeps moving
		return a, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View renders the current state
func (a *App) View() string {
	var content string
	if a.snap == nil || a.snap.Version == 0 {
		content = fmt.Sprintf("\n  %s Loading dashboard for %s...\n", a.spinner.View(), a.identity.DisplayName)
	} else {
		content = a.dashboard.View()
	}

	if a.err != nil {
		content += "\n" + styles.StatusCritical.Render("Refresh failed: "+a.err.Error())
	}
	if a.channel.State != models.ChannelConnected && a.channel.LastError != nil {
		content += "\n" + styles.StatusWarning.Render("Realtime: "+a.channel.LastError.Error())
	}

	return a.wrapWithFrame(content)
}

// SignedOut reports whether the app quit because the session ended
func (a *App) SignedOut() bool {
	return a.signedOut
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return refreshDoneMsg{err: a.refresher.Refresh(ctx)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) contentWidth() int {
	if a.width < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width
}

func (a *App) contentHeight() int {
	h := a.height - 4 // header, footer and status lines
	if h < minTerminalHeight {
		return minTerminalHeight
	}
	return h
}

// renderHeader creates the top border with the app title and signed-in identity
func (a *App) renderHeader() string {
	width := a.contentWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftText := " " + titleStyle.Render("Fastfood Ops")

	rightText := ""
	if a.identity.DisplayName != "" {
		rightText = contextStyle.Render(fmt.Sprintf("%s (%s)", a.identity.DisplayName, a.identity.Role)) +
			" " + widgets.ChannelBadge(a.channel.State) + " "
	}

	leftWidth := lipgloss.Width(leftText)
	rightWidth := lipgloss.Width(rightText)
	fillWidth := width - 4 - leftWidth - rightWidth // -4 for ╭─ and ─╮
	if fillWidth < 0 {
		fillWidth = 0
	}

	fill := strings.Repeat("─", fillWidth)
	header := "╭─" + leftText + fill + rightText + "─╮"

	return borderStyle.Render(header)
}

// renderFooter creates the bottom border with keyboard shortcuts and last update time
func (a *App) renderFooter() string {
	width := a.contentWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	shortcuts := []string{"r Refresh", "q Quit"}

	var styledShortcuts []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		styledShortcuts = append(styledShortcuts, keyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
	}

	leftText := " " + strings.Join(styledShortcuts, "  ")
	leftPlainText := " " + strings.Join(shortcuts, "  ")

	rightText := ""
	rightPlainText := ""
	switch {
	case a.refreshing:
		rightText = statusStyle.Render("Refreshing...") + " "
		rightPlainText = "Refreshing... "
	case !a.lastUpdate.IsZero():
		elapsed := formatTimeSince(a.lastUpdate)
		rightText = statusStyle.Render("Updated "+elapsed) + " "
		rightPlainText = "Updated " + elapsed + " "
	}

	leftWidth := lipgloss.Width(leftPlainText)
	rightWidth := lipgloss.Width(rightPlainText)
	fillWidth := width - 4 - leftWidth - rightWidth // -4 for ╰─ and ─╯
	if fillWidth < 0 {
		fillWidth = 0
	}

	fill := strings.Repeat("─", fillWidth)
	footer := "╰─" + leftText + fill + rightText + "─╯"

	return borderStyle.Render(footer)
}

// formatTimeSince formats a duration since the given time in human-readable form
func formatTimeSince(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 5 {
			return "just now"
		}
		return fmt.Sprintf("%ds ago", secs)
	}

	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}

	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}
