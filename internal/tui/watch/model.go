// Package watch is a terminal UI that tails the delivery log.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

const (
	pollInterval = 2 * time.Second
	maxRows      = 30
)

type deliveriesMsg struct {
	deliveries []store.Delivery
	counts     store.DeliveryCounts
	err        error
}

type tickMsg time.Time

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	dlog store.DeliveryLog

	width  int
	height int

	deliveries []store.Delivery
	counts     store.DeliveryCounts
	lastError  string

	spinner spinner.Model
	theme   Theme
}

// New creates a new watch TUI model over a delivery log.
func New(dlog store.DeliveryLog) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return &Model{
		dlog:    dlog,
		spinner: sp,
		theme:   NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchDeliveries,
		m.spinner.Tick,
		tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			m.fetchDeliveries,
			tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case deliveriesMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		} else {
			m.lastError = ""
			m.deliveries = msg.deliveries
			m.counts = msg.counts
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Title.Render("fathom-to-slacklist deliveries"))
	b.WriteString("  " + m.spinner.View())
	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render(fmt.Sprintf(
		"succeeded %d  rejected %d  failed %d  (q to quit)",
		m.counts.Succeeded, m.counts.Rejected, m.counts.Failed,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Header.Render(fmt.Sprintf(
		"%-8s  %-36s  %-7s  %-9s  %5s  %s",
		"TIME", "CONNECTION", "KIND", "OUTCOME", "ITEMS", "DETAIL",
	)))
	b.WriteString("\n")

	if len(m.deliveries) == 0 {
		b.WriteString(m.theme.Dim.Render("no deliveries yet"))
		b.WriteString("\n")
	}

	for _, d := range m.deliveries {
		style := m.theme.Succeeded
		switch d.Outcome {
		case "rejected":
			style = m.theme.Rejected
		case "failed":
			style = m.theme.Failed
		}

		detail := d.Detail
		if d.SinkStatus != 0 {
			detail = fmt.Sprintf("sink %d %s", d.SinkStatus, detail)
		}

		b.WriteString(style.Render(fmt.Sprintf(
			"%-8s  %-36s  %-7s  %-9s  %5d  %s",
			d.CreatedAt.Local().Format("15:04:05"),
			d.ConnectionID,
			d.Kind,
			d.Outcome,
			d.ItemsSent,
			detail,
		)))
		b.WriteString("\n")
	}

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.ErrorBar.Render("error: " + m.lastError))
		b.WriteString("\n")
	}

	return b.String()
}

// fetchDeliveries loads the latest rows outside the update loop.
func (m Model) fetchDeliveries() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	defer cancel()

	deliveries, err := m.dlog.Recent(ctx, maxRows)
	if err != nil {
		return deliveriesMsg{err: err}
	}
	counts, err := m.dlog.Counts(ctx)
	if err != nil {
		return deliveriesMsg{err: err}
	}
	return deliveriesMsg{deliveries: deliveries, counts: counts}
}

// Run starts the watch TUI and blocks until it exits.
func Run(dlog store.DeliveryLog) error {
	p := tea.NewProgram(New(dlog))
	_, err := p.Run()
	return err
}
