// ABOUTME: Status badge widgets for quick visual status indication
// ABOUTME: Maps channel states and order statuses onto colored inline badges

package widgets

import (
	"strings"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/charmbracelet/lipgloss"
)

// StatusLevel represents the severity of a status
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusInfo
	StatusNeutral
)

// Badge colors
var (
	BadgeOKBg      = lipgloss.Color("#10B981")
	BadgeOKFg      = lipgloss.Color("#FFFFFF")
	BadgeWarnBg    = lipgloss.Color("#F59E0B")
	BadgeWarnFg    = lipgloss.Color("#000000")
	BadgeCritBg    = lipgloss.Color("#EF4444")
	BadgeCritFg    = lipgloss.Color("#FFFFFF")
	BadgeInfoBg    = lipgloss.Color("#3B82F6")
	BadgeInfoFg    = lipgloss.Color("#FFFFFF")
	BadgeNeutralBg = lipgloss.Color("#6B7280")
	BadgeNeutralFg = lipgloss.Color("#FFFFFF")
)

// Badge renders a colored status badge
func Badge(text string, level StatusLevel) string {
	var bg, fg lipgloss.Color

	switch level {
	case StatusOK:
		bg, fg = BadgeOKBg, BadgeOKFg
	case StatusWarning:
		bg, fg = BadgeWarnBg, BadgeWarnFg
	case StatusCritical:
		bg, fg = BadgeCritBg, BadgeCritFg
	case StatusInfo:
		bg, fg = BadgeInfoBg, BadgeInfoFg
	default:
		bg, fg = BadgeNeutralBg, BadgeNeutralFg
	}

	style := lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true)

	return style.Render(text)
}

// ChannelLevel maps the realtime channel state to a severity
func ChannelLevel(state models.ChannelState) StatusLevel {
	switch state {
	case models.ChannelConnected:
		return StatusOK
	case models.ChannelConnecting:
		return StatusInfo
	case models.ChannelError:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// ChannelBadge renders the realtime channel state
func ChannelBadge(state models.ChannelState) string {
	label := "LIVE"
	switch state {
	case models.ChannelConnecting:
		label = "CONNECTING"
	case models.ChannelError:
		label = "RETRYING"
	case models.ChannelDisconnected:
		label = "OFFLINE"
	}
	return Badge(label, ChannelLevel(state))
}

// OrderLevel maps an order or task status to a severity
func OrderLevel(status string) StatusLevel {
	switch strings.ToLower(status) {
	case "completed", "delivered", "paid", "ready", "done":
		return StatusOK
	case "delivering", "preparing", "assigned", "in_progress", "queued":
		return StatusInfo
	case "pending", "unpaid", "low":
		return StatusWarning
	case "cancelled", "canceled", "failed", "refunded", "out":
		return StatusCritical
	default:
		return StatusNeutral
	}
}

// OrderBadge renders an order, task or inventory status
func OrderBadge(status string) string {
	if status == "" {
		return Badge("--", StatusNeutral)
	}
	return Badge(strings.ToUpper(status), OrderLevel(status))
}
