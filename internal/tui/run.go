// ABOUTME: Wires the reconciler, realtime channel and session into a running TUI program
// ABOUTME: Background callbacks reach the model through Program.Send

package tui

import (
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	tea "github.com/charmbracelet/bubbletea"
)

// SnapshotSource is the reconciler surface the dashboard observes
type SnapshotSource interface {
	Refresher
	Snapshot() models.Snapshot
	OnChange(fn func(models.Snapshot))
}

// ChannelSource is the realtime channel surface the dashboard observes
type ChannelSource interface {
	State() models.ChannelConnection
	OnStateChange(fn func(models.ChannelConnection))
}

// Invalidator notifies when the session ends
type Invalidator interface {
	OnInvalidate(fn func()) func()
}

// Sources groups everything the dashboard reads from
type Sources struct {
	Identity models.UserIdentity
	Snapshot SnapshotSource
	Channel  ChannelSource
	Sessions Invalidator
}

// Run starts the TUI and blocks until the user quits. It returns ErrSignedOut
// when the session was invalidated while the dashboard was open.
func Run(src Sources) error {
	app := New(src.Identity, src.Snapshot)
	if src.Channel != nil {
		app.channel = src.Channel.State()
	}
	if snap := src.Snapshot.Snapshot(); snap.Version > 0 {
		app.Update(SnapshotMsg{Snapshot: snap})
	}

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
	)

	src.Snapshot.OnChange(func(s models.Snapshot) { p.Send(SnapshotMsg{Snapshot: s}) })
	if src.Channel != nil {
		src.Channel.OnStateChange(func(c models.ChannelConnection) { p.Send(ChannelMsg{Conn: c}) })
	}
	if src.Sessions != nil {
		remove := src.Sessions.OnInvalidate(func() { p.Send(SignedOutMsg{}) })
		defer remove()
	}

	if _, err := p.Run(); err != nil {
		return err
	}
	if app.SignedOut() {
		return ErrSignedOut
	}
	return nil
}
