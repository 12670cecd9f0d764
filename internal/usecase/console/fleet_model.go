package console

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/domain/fleet"
)

const (
	maxShownReadings = 8
	maxAuditLines    = 8
	maxReadingWidth  = 96
)

type Registry interface {
	List(ctx context.Context) ([]fleet.Commission, error)
	Decommission(ctx context.Context, raptorID string) error
	Recommission(ctx context.Context, raptorID string) error
}

type TelemetryLog interface {
	Count(ctx context.Context) (int64, error)
	Backlog(ctx context.Context, limit int) ([]fleet.TelemetryReading, error)
}

type HardwareLister interface {
	ListEnabled(ctx context.Context) iter.Seq2[fleet.HardwareInstance, error]
}

type FirmwareReader interface {
	LatestVersion(ctx context.Context) (string, error)
}

// Sources are the stores the console reads. All are required.
type Sources struct {
	Registry  Registry
	Telemetry TelemetryLog
	Hardware  HardwareLister
	Firmware  FirmwareReader
}

type Options struct {
	RefreshInterval time.Duration
}

type snapshot struct {
	commissions    []fleet.Commission
	telemetryCount int64
	readings       []fleet.TelemetryReading
	hardware       []fleet.HardwareInstance
	firmware       string
}

type fleetModel struct {
	ctx             context.Context
	sources         Sources
	refreshInterval time.Duration

	snap          snapshot
	loaded        bool
	selectedIndex int
	status        string
	auditLogs     []string
}

type snapshotLoadedMsg struct {
	snap snapshot
	err  error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action   string
	raptorID string
	err      error
}

func NewFleetModel(ctx context.Context, sources Sources, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &fleetModel{
		ctx:             ctx,
		sources:         sources,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *fleetModel) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshotCmd(), m.tickCmd())
}

func (m *fleetModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadSnapshotCmd(), m.tickCmd())
	case snapshotLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.snap = msg.snap
		m.loaded = true
		m.clampSelection()
		m.status = fmt.Sprintf("refreshed at %s", time.Now().Format(time.TimeOnly))
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.raptorID)
		}
		m.appendAuditLog(msg.action, msg.raptorID, msg.err)
		return m, m.loadSnapshotCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadSnapshotCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.snap.commissions)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "d":
			return m, m.toggleDisabledCmd()
		}
	}
	return m, nil
}

func (m *fleetModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Raptor Fleet Console"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"firmware=%s telemetry=%d hardware=%d refresh=%s",
		firstNonEmpty(m.snap.firmware, "-"),
		m.snap.telemetryCount,
		len(m.snap.hardware),
		m.refreshInterval,
	)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Commissions"))
	b.WriteString("\n")
	if len(m.snap.commissions) == 0 {
		b.WriteString(dimStyle.Render("- none"))
		b.WriteString("\n")
	}
	for index, c := range m.snap.commissions {
		tag := firstNonEmpty(c.FirmwareTagOrEmpty(), "-")
		line := fmt.Sprintf("%s firmware=%s", c.RaptorID, tag)
		if c.Disabled {
			line += " [disabled]"
		} else if m.snap.firmware != "" && tag != m.snap.firmware {
			line += warnStyle.Render(" drift")
		}
		if index == m.selectedIndex {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Enabled Hardware"))
	b.WriteString("\n")
	if len(m.snap.hardware) == 0 {
		b.WriteString(dimStyle.Render("- none"))
		b.WriteString("\n")
	}
	for _, h := range m.snap.hardware {
		b.WriteString(fmt.Sprintf("- #%d %s %s ref=%s\n", h.ID, h.HardwareType, h.DriverPath, firstNonEmpty(h.ExternalRef, "-")))
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Recent Telemetry"))
	b.WriteString("\n")
	if len(m.snap.readings) == 0 {
		b.WriteString(dimStyle.Render("- none"))
		b.WriteString("\n")
	}
	for _, r := range m.snap.readings {
		b.WriteString(fmt.Sprintf("- %d %s %s\n", r.ID, r.Timestamp.Format(time.DateTime), truncate(r.Data.String(), maxReadingWidth)))
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Status"))
	b.WriteString("\n- " + firstNonEmpty(m.status, "ready") + "\n\n")

	b.WriteString(sectionStyle.Render("Audit Log"))
	b.WriteString("\n")
	if len(m.auditLogs) == 0 {
		b.WriteString(dimStyle.Render("- no actions"))
		b.WriteString("\n")
	}
	for _, line := range m.auditLogs {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  d decommission/recommission  q quit"))
	return b.String()
}

func (m *fleetModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *fleetModel) loadSnapshotCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := loadSnapshot(m.ctx, m.sources)
		return snapshotLoadedMsg{snap: snap, err: err}
	}
}

func (m *fleetModel) toggleDisabledCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "no unit selected"
		return nil
	}
	return func() tea.Msg {
		if selected.Disabled {
			err := m.sources.Registry.Recommission(m.ctx, selected.RaptorID)
			return actionDoneMsg{action: "recommission", raptorID: selected.RaptorID, err: err}
		}
		err := m.sources.Registry.Decommission(m.ctx, selected.RaptorID)
		return actionDoneMsg{action: "decommission", raptorID: selected.RaptorID, err: err}
	}
}

func (m *fleetModel) selected() (fleet.Commission, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.snap.commissions) {
		return fleet.Commission{}, false
	}
	return m.snap.commissions[m.selectedIndex], true
}

func (m *fleetModel) clampSelection() {
	if m.selectedIndex >= len(m.snap.commissions) {
		m.selectedIndex = len(m.snap.commissions) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

func (m *fleetModel) appendAuditLog(action string, raptorID string, opErr error) {
	result := "ok"
	if opErr != nil {
		result = "failed: " + opErr.Error()
	}
	line := fmt.Sprintf("%s %s %s %s", time.Now().Format(time.TimeOnly), action, raptorID, result)
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}

	logCtx := logging.WithAttrs(m.ctx, slog.String("component", "console"))
	if opErr != nil {
		logging.Warn(logCtx, "console action failed", slog.String("action", action), slog.String("raptor_id", raptorID), slog.Any("err", opErr))
		return
	}
	logging.Info(logCtx, "console action", slog.String("action", action), slog.String("raptor_id", raptorID))
}

func loadSnapshot(ctx context.Context, sources Sources) (snapshot, error) {
	var snap snapshot
	var err error

	if snap.commissions, err = sources.Registry.List(ctx); err != nil {
		return snapshot{}, fmt.Errorf("list commissions: %w", err)
	}
	if snap.telemetryCount, err = sources.Telemetry.Count(ctx); err != nil {
		return snapshot{}, fmt.Errorf("count telemetry: %w", err)
	}
	if snap.readings, err = sources.Telemetry.Backlog(ctx, maxShownReadings); err != nil {
		return snapshot{}, fmt.Errorf("load telemetry backlog: %w", err)
	}
	for instance, err := range sources.Hardware.ListEnabled(ctx) {
		if err != nil {
			return snapshot{}, fmt.Errorf("list enabled hardware: %w", err)
		}
		snap.hardware = append(snap.hardware, instance)
	}
	snap.firmware, err = sources.Firmware.LatestVersion(ctx)
	if err != nil && !errors.Is(err, fleet.ErrNotFound) {
		return snapshot{}, fmt.Errorf("load latest firmware: %w", err)
	}
	return snap, nil
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
