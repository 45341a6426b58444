// Package tui renders claimable and pending governance unlocks in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"governance-unlocks/internal/amount"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/scheduler"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	claimableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

// truncateToWidth cuts s to at most width display cells, marking the cut with "...".
func truncateToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(truncateToWidth(text, width-2), width-2) + "│"
}

// formatETA renders d as a coarse human duration such as "2d 4h" or "15m".
func formatETA(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "<1m"
	}
}

// HeadMsg is sent when the chain head advances
type HeadMsg struct {
	Height governance.BlockNumber
}

// ResultMsg is sent when a schedule was recomputed
type ResultMsg struct {
	Result scheduler.Result
}

// Options control amount and time rendering
type Options struct {
	TokenDecimals int32
	TokenSymbol   string
	BlockTime     time.Duration
}

// Model holds the TUI state
type Model struct {
	opts     Options
	head     governance.BlockNumber
	accounts map[string]scheduler.Result
	width    int
	height   int
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	return Model{
		opts:     opts,
		accounts: map[string]scheduler.Result{},
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case HeadMsg:
		if msg.Height > m.head {
			m.head = msg.Height
		}
		return m, nil

	case ResultMsg:
		res := msg.Result
		if prev, ok := m.accounts[res.Account]; ok && res.Err != nil {
			// keep the last good schedule visible next to the error
			prev.Err = res.Err
			res = prev
		}
		accounts := make(map[string]scheduler.Result, len(m.accounts)+1)
		for k, v := range m.accounts {
			accounts[k] = v
		}
		accounts[res.Account] = res
		m.accounts = accounts
		if res.Head > m.head {
			m.head = res.Head
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader()}
	for _, account := range m.sortedAccounts() {
		sections = append(sections, m.renderAccount(m.accounts[account]))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) sortedAccounts() []string {
	names := make([]string, 0, len(m.accounts))
	for name := range m.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Model) format(b governance.Balance) string {
	return amount.FormatFixed(b, m.opts.TokenDecimals, 4, m.opts.TokenSymbol)
}

// renderHeader renders the top header section
func (m Model) renderHeader() string {
	colWidth := (m.width - 3) / 2
	rightColWidth := m.width - colWidth - 3

	left := fmt.Sprintf("head=%d accounts=%d", m.head, len(m.accounts))
	right := "block time: N/A"
	if m.opts.BlockTime > 0 {
		right = fmt.Sprintf("block time: %s", m.opts.BlockTime)
	}

	row := "│" + padToWidth(truncateToWidth(left, colWidth), colWidth) +
		"│" + padToWidth(truncateToWidth(right, rightColWidth), rightColWidth) + "│"
	top := "┌" + strings.Repeat("─", colWidth) + "┬" + strings.Repeat("─", rightColWidth) + "┐"
	bottom := "├" + strings.Repeat("─", colWidth) + "┴" + strings.Repeat("─", rightColWidth) + "┤"
	return top + "\n" + row + "\n" + bottom
}

// accountLines returns the unstyled rows describing one account's schedule.
func (m Model) accountLines(res scheduler.Result) []string {
	title := fmt.Sprintf("%s  total %s", res.Account, m.format(res.Schedule.TotalAmount()))
	if res.Stale {
		title += "  (stale)"
	}
	lines := []string{title}

	// the followed head may have passed pending unlocks since res was computed
	claim := res.Claim
	if m.head > res.Head {
		claim = res.Schedule.ClaimSchedule(m.head)
	}
	if claim.Claimable != nil {
		c := claim.Claimable
		lines = append(lines, fmt.Sprintf("  claimable now   %s  %s", m.format(c.Amount), c.Actions))
	}
	for _, p := range claim.Pending {
		eta := formatETA(m.head.Until(p.UnlockAt, m.opts.BlockTime))
		lines = append(lines, fmt.Sprintf("  at block %-7d ~%-7s %s  %s", p.UnlockAt, eta, m.format(p.Amount), p.Actions))
	}
	if claim.Claimable == nil && len(claim.Pending) == 0 && res.Err == nil {
		lines = append(lines, "  nothing locked")
	}
	if res.Err != nil {
		lines = append(lines, "  error: "+res.Err.Error())
	}
	return lines
}

func (m Model) renderAccount(res scheduler.Result) string {
	lines := m.accountLines(res)
	out := make([]string, 0, len(lines)+1)
	for i, line := range lines {
		row := formatInfoLine(line, m.width)
		switch {
		case strings.HasPrefix(line, "  claimable"):
			row = claimableStyle.Render(row)
		case strings.HasPrefix(line, "  error:"):
			row = errorStyle.Render(row)
		case i == 0 && res.Stale:
			row = dimStyle.Render(row)
		}
		out = append(out, row)
	}
	out = append(out, separatorLine(m.width))
	return strings.Join(out, "\n")
}

func (m Model) renderFooter() string {
	bottom := "└" + strings.Repeat("─", max(m.width-2, 0)) + "┘"
	return formatInfoLine("q: quit", m.width) + "\n" + bottom
}

// Run starts the TUI program. It returns when the user quits or ctx is done.
func Run(ctx context.Context, updateCh <-chan interface{}, opts Options) error {
	m := NewModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case data, ok := <-updateCh:
				if !ok {
					// Channel closed, quit TUI
					p.Quit()
					return
				}
				switch v := data.(type) {
				case governance.BlockNumber:
					p.Send(HeadMsg{Height: v})
				case scheduler.Result:
					p.Send(ResultMsg{Result: v})
				}
			}
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
