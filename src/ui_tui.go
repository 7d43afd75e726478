package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type phase int

const (
	phaseReading phase = iota
	phaseScheduling
	phaseReview
	phaseWriting
	phaseDone
)

type model struct {
	config       *Config
	currentPhase phase
	spinner      spinner.Model
	progress     progress.Model

	// Data
	req     *RunRequest
	plan    *Plan
	rows    []Assignment
	summary *RunSummary

	// Progress tracking
	scanProgress ScanProgress
	statusMsg    string

	journal *Journal

	// Progress channels for async updates
	readProgress  chan ScanProgress
	writeProgress chan ScanProgress

	// UI state
	selected     int
	scrollOffset int
	width        int
	height       int

	// Error
	err error
}

type readCompleteMsg struct {
	metas []*ExistingMetadata
}

type planReadyMsg struct {
	plan *Plan
}

type executionCompleteMsg struct {
	summary *RunSummary
	err     error
}

type progressMsg ScanProgress
type errMsg error

func initialModel(config *Config, req *RunRequest, plan *Plan, journal *Journal) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(), // Don't show built-in percentage
	)
	// Set a reasonable default width (will be updated when WindowSizeMsg arrives)
	p.Width = 60

	return model{
		config:       config,
		spinner:      s,
		progress:     p,
		currentPhase: phaseReading,
		req:          req,
		plan:         plan,
		journal:      journal,
		readProgress: make(chan ScanProgress, 100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		readMetadata(m.config, m.req.Items, m.readProgress),
		waitForProgress(m.readProgress),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Account for: left margin (2) + suffix text like " 100% (9999/9999 files)" (~30)
		progressWidth := msg.Width - 35
		if progressWidth < 20 {
			progressWidth = 20 // Minimum width
		}
		m.progress.Width = progressWidth
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Never abandon a file mid-write
			if m.currentPhase == phaseWriting {
				return m, nil
			}
			return m, tea.Quit

		case "y", "a", "enter":
			// Accept plan and write
			if m.currentPhase == phaseReview {
				m.currentPhase = phaseWriting
				m.statusMsg = "Writing photos..."
				m.scanProgress = ScanProgress{}
				m.writeProgress = make(chan ScanProgress, 100)
				return m, tea.Batch(
					executeRun(m.req, m.plan, m.journal, m.writeProgress),
					waitForProgress(m.writeProgress),
				)
			}
			if m.currentPhase == phaseDone {
				return m, tea.Quit
			}

		case "n", "r":
			// Reject plan and quit
			if m.currentPhase == phaseReview {
				return m, tea.Quit
			}

		case "up", "k":
			if m.currentPhase == phaseReview && m.selected > 0 {
				m.selected--
				if m.selected < m.scrollOffset {
					m.scrollOffset = m.selected
				}
			}

		case "down", "j":
			if m.currentPhase == phaseReview && m.selected < len(m.rows)-1 {
				m.selected++
				maxVisible := m.maxVisible()
				if m.selected >= m.scrollOffset+maxVisible {
					m.scrollOffset = m.selected - maxVisible + 1
				}
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.scanProgress = ScanProgress(msg)
		// Continue listening for more progress updates
		if m.currentPhase == phaseReading && m.readProgress != nil {
			return m, waitForProgress(m.readProgress)
		}
		if m.currentPhase == phaseWriting && m.writeProgress != nil {
			return m, waitForProgress(m.writeProgress)
		}
		return m, nil

	case readCompleteMsg:
		m.currentPhase = phaseScheduling
		m.scanProgress = ScanProgress{}
		m.statusMsg = "Scheduling capture times..."
		return m, schedule(m.config, m.req, msg.metas)

	case planReadyMsg:
		m.plan = msg.plan
		m.rows = msg.plan.Assignments()
		m.currentPhase = phaseReview
		m.statusMsg = "Review plan"
		return m, nil

	case executionCompleteMsg:
		m.currentPhase = phaseDone
		m.summary = msg.summary
		if msg.summary == nil {
			m.err = msg.err
			return m, nil
		}
		m.statusMsg = msg.summary.String()
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

func (m model) maxVisible() int {
	n := m.height - 15
	if n < 5 {
		n = 5
	}
	return n
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit", m.err)
	}

	var b strings.Builder

	// Top margin
	b.WriteString("\n")

	// Header
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	b.WriteString(titleStyle.Render("Film EXIF Writer"))
	b.WriteString("\n\n")

	// Run settings (shown during processing phases)
	if m.currentPhase != phaseReview && m.currentPhase != phaseDone {
		configStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginLeft(2)
		b.WriteString(configStyle.Render(m.settingsLine()))
		b.WriteString("\n\n")
	}

	// Phase indicator
	b.WriteString("  ") // Left margin
	phases := []string{"Reading", "Scheduling", "Review", "Writing", "Done"}
	for i, phase := range phases {
		if i > 0 {
			b.WriteString(" → ")
		}
		if int(m.currentPhase) == i {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render(phase))
		} else if int(m.currentPhase) > i {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("✓"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(phase))
		}
	}
	b.WriteString("\n\n")

	// Content based on phase
	switch m.currentPhase {
	case phaseReading, phaseScheduling, phaseWriting:
		b.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), m.statusMsg))

		// Show progress bar if we have total files
		if m.scanProgress.TotalFiles > 0 {
			percent := float64(m.scanProgress.ProcessedFiles) / float64(m.scanProgress.TotalFiles)
			percentDisplay := int(percent * 100)

			b.WriteString("  ") // Left margin
			b.WriteString(m.progress.ViewAs(percent))
			b.WriteString(fmt.Sprintf(" %d%% (%d/%d files)\n\n",
				percentDisplay,
				m.scanProgress.ProcessedFiles,
				m.scanProgress.TotalFiles))
			if m.scanProgress.Failures > 0 {
				failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).MarginLeft(2)
				b.WriteString(failStyle.Render(fmt.Sprintf("%d failed", m.scanProgress.Failures)))
				b.WriteString("\n")
			}
		}

		// Show current file being processed
		if m.scanProgress.CurrentFile != "" {
			maxLen := m.width - 20
			if maxLen < 40 {
				maxLen = 40
			}
			currentFile := truncatePath(m.scanProgress.CurrentFile, maxLen)
			fileStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				MarginLeft(2)
			b.WriteString(fmt.Sprintf("\n%s", fileStyle.Render(currentFile)))
		}

	case phaseReview:
		b.WriteString(m.renderReview())

	case phaseDone:
		b.WriteString(m.renderDone())
	}

	// Footer
	b.WriteString("\n\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginLeft(2)
	switch m.currentPhase {
	case phaseReview:
		b.WriteString(helpStyle.Render("↑/↓: navigate • y/a/enter: accept & write • n/r: reject & quit • q: quit"))
	case phaseDone:
		b.WriteString(helpStyle.Render("enter: quit • q: quit"))
	case phaseWriting:
		b.WriteString(helpStyle.Render("writing, please wait"))
	default:
		b.WriteString(helpStyle.Render("q: quit"))
	}

	// Bottom margin
	b.WriteString("\n")

	return b.String()
}

func (m model) settingsLine() string {
	mode := "in place"
	if m.req.Stamp {
		mode = fmt.Sprintf("stamp %s → %s", m.req.StampSpec.Format, truncatePath(m.req.OutputDir, 25))
	}
	start := "no start time"
	if m.req.StartTime != nil {
		start = "from " + m.req.StartTime.String()
	}
	return fmt.Sprintf("%d photos | %s | %s | Workers: %d", len(m.req.Items), start, mode, m.config.Workers)
}

func (m model) renderReview() string {
	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	dated, undated := 0, 0
	for _, g := range m.plan.Groups {
		if g.Date == nil {
			undated += len(g.Assignments)
		} else {
			dated += len(g.Assignments)
		}
	}

	// Summary
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"Total: %d photos • Dates: %d • Undated: %d\nCamera: %s • Lens: %s • Film: %s",
		m.plan.Len(),
		len(m.plan.Groups)-boolToInt(undated > 0),
		undated,
		defaultString(m.req.Fields.CameraModel, "-"),
		defaultString(m.req.Fields.Lens, "-"),
		defaultString(m.req.Fields.Film, "-"),
	)))
	b.WriteString("\n\n")

	if m.req.Stamp && undated > 0 {
		warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).MarginLeft(2)
		b.WriteString(warnStyle.Render(fmt.Sprintf("⚠ %d undated photos cannot be stamped and will fail", undated)))
		b.WriteString("\n\n")
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		MarginLeft(2)
	b.WriteString(headerStyle.Render("Photos:"))
	b.WriteString("\n\n")

	maxVisible := m.maxVisible()
	start := m.scrollOffset
	end := start + maxVisible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		a := m.rows[i]
		ts := "no timestamp"
		if a.Timestamp != nil {
			ts = a.Timestamp.Format("2006-01-02 15:04")
		}

		var line string
		if i == m.selected {
			selectedStyle := lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("230")).
				MarginLeft(2)
			line = selectedStyle.Render(fmt.Sprintf("► %s  %s", a.Item.Name(), ts))
		} else {
			line = fmt.Sprintf("    %s  %s", a.Item.Name(), ts)
		}

		b.WriteString(line)
		b.WriteString("\n")

		if i == m.selected {
			destStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				MarginLeft(2)
			b.WriteString(destStyle.Render(fmt.Sprintf("    → %s", plannedDestination(m.req, a))))
			b.WriteString("\n")
		}
	}

	if len(m.rows) > end {
		moreStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginLeft(2)
		b.WriteString(moreStyle.Render(fmt.Sprintf("\n... %d more photos ...", len(m.rows)-end)))
	}

	return b.String()
}

func (m model) renderDone() string {
	var b strings.Builder

	style := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true).MarginLeft(2)
	if m.summary != nil && m.summary.Failed > 0 {
		style = style.Foreground(lipgloss.Color("214"))
	}
	b.WriteString(style.Render("✓ " + m.statusMsg))
	b.WriteString("\n\n")

	if m.summary == nil {
		return b.String()
	}
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).MarginLeft(2)
	shown := 0
	for _, r := range m.summary.Results {
		if r.Err == nil {
			continue
		}
		if shown == 10 {
			b.WriteString(errStyle.Render(fmt.Sprintf("... and %d more failures", m.summary.Failed-shown)))
			b.WriteString("\n")
			break
		}
		b.WriteString(errStyle.Render("✗ " + r.Err.Error()))
		b.WriteString("\n")
		shown++
	}
	return b.String()
}

// Commands
// readMetadata runs inside the command's goroutine; waitForProgress is the
// only reader of progressChan, which is closed once the read finishes
func readMetadata(config *Config, items []*PhotoItem, progressChan chan ScanProgress) tea.Cmd {
	return func() tea.Msg {
		defer close(progressChan)
		if !config.DatesFromExif {
			return readCompleteMsg{}
		}
		return readCompleteMsg{metas: InspectPhotos(items, config.Workers, progressChan)}
	}
}

func schedule(config *Config, req *RunRequest, metas []*ExistingMetadata) tea.Cmd {
	return func() tea.Msg {
		if config.DatesFromExif {
			AssignDatesFromExif(req.Items, metas)
			if req.StartTime == nil && anyDated(req.Items) {
				tod := TimeOfDay{Hour: 12}
				req.StartTime = &tod
			}
		}
		return planReadyMsg{plan: Schedule(req.Items, req.StartTime)}
	}
}

// waitForProgress polls the progress channel and sends updates
func waitForProgress(progressChan <-chan ScanProgress) tea.Cmd {
	return func() tea.Msg {
		prog, ok := <-progressChan
		if !ok {
			// Channel closed, processing done
			return nil
		}
		return progressMsg(prog)
	}
}

func executeRun(req *RunRequest, plan *Plan, journal *Journal, progressChan chan ScanProgress) tea.Cmd {
	return func() tea.Msg {
		defer close(progressChan)
		summary, err := ExecuteRun(req, plan, NewFontResolver(), progressChan, journal)
		return executionCompleteMsg{summary: summary, err: err}
	}
}

// truncatePath shortens a file path for display
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	// Try to show end of path with ...
	if maxLen > 10 {
		return "..." + path[len(path)-maxLen+3:]
	}

	return path[:maxLen]
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
