// ABOUTME: Dashboard component rendering the reconciled role snapshot
// ABOUTME: Shows metrics, collection rows with status badges and stale markers

package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/styles"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/tui/widgets"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/charmbracelet/lipgloss"
)

// maxRows caps the rows shown per collection
const maxRows = 8

// Dashboard displays one role's snapshot
type Dashboard struct {
	snap   *models.Snapshot
	width  int
	height int
}

// New creates a new dashboard with snapshot data
func New(snap *models.Snapshot, width, height int) *Dashboard {
	return &Dashboard{
		snap:   snap,
		width:  width,
		height: height,
	}
}

// Update replaces the rendered snapshot
func (d *Dashboard) Update(snap *models.Snapshot) {
	d.snap = snap
}

// SetSize updates the dashboard dimensions
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard
func (d *Dashboard) View() string {
	if d.snap == nil || d.snap.Version == 0 {
		return styles.Panel.Width(d.width).Render("Loading dashboard...")
	}

	var sb strings.Builder

	sb.WriteString(styles.Title.Render(titleFor(d.snap.Role)))
	sb.WriteString("\n")

	if len(d.snap.Metrics) > 0 {
		sb.WriteString(d.renderMetrics())
		sb.WriteString("\n\n")
	}

	for _, name := range sortedKeys(d.snap.Collections) {
		sb.WriteString(d.renderCollection(name, d.snap.Collections[name]))
		sb.WriteString("\n")
	}

	if d.snap.Status != "" {
		sb.WriteString(styles.StatusWarning.Render("! " + d.snap.Status))
		sb.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(d.width).
		Height(d.height).
		Render(sb.String())
}

func (d *Dashboard) renderMetrics() string {
	blocks := make([]string, 0, len(d.snap.Metrics))
	for _, name := range sortedKeys(d.snap.Metrics) {
		block := lipgloss.JoinVertical(lipgloss.Left,
			styles.ValueStyle.Render(formatMetric(d.snap.Metrics[name])),
			styles.Subtitle.Render(humanize(name)),
		)
		blocks = append(blocks, styles.Panel.Render(block))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

func (d *Dashboard) renderCollection(name string, rows []models.Record) string {
	var sb strings.Builder
	sb.WriteString(styles.KeyStyle.Render(humanize(name)))
	sb.WriteString(styles.Subtitle.Render(fmt.Sprintf(" (%d)", len(rows))))
	sb.WriteString("\n")

	if len(rows) == 0 {
		sb.WriteString(styles.Subtitle.Render("  nothing here yet"))
		sb.WriteString("\n")
		return sb.String()
	}

	for i, r := range rows {
		if i == maxRows {
			sb.WriteString(styles.Subtitle.Render(fmt.Sprintf("  … %d more", len(rows)-maxRows)))
			sb.WriteString("\n")
			break
		}
		line := fmt.Sprintf("  #%-8s %s %s", r.ID, widgets.OrderBadge(r.Status), summary(r))
		if d.snap.IsStale(name, r.ID) {
			line = styles.StaleStyle.Render(line + " (refreshing)")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func titleFor(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "Store Overview"
	case models.RoleStaff:
		return "Kitchen & Counter"
	default:
		return "My Orders"
	}
}

// summary picks a short description from the record's free-form fields
func summary(r models.Record) string {
	for _, key := range []string{"name", "title", "item", "customerName", "total"} {
		if v, ok := models.StringField(r.Fields, key); ok {
			return v
		}
	}
	return ""
}

func formatMetric(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// humanize turns "pendingOrders" or "kitchen_tasks" into "Pending orders" / "Kitchen tasks"
func humanize(key string) string {
	var sb strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			sb.WriteRune(' ')
		case r >= 'A' && r <= 'Z' && i > 0:
			sb.WriteRune(' ')
			sb.WriteRune(r + ('a' - 'A'))
		default:
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
