package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dupctl/dupctl/internal/jobserver"
)

// activityLine is one rendered event, newest first.
type activityLine struct {
	at      time.Time
	label   string
	jobID   string
	jobType string
}

// activityMsg carries a single event off the subscription channel.
type activityMsg activityLine

// ActivityModel tails the Job Server's event bus live, in subscription
// order, mirroring spec.md §5's ordering guarantee for the live channel:
// no replay of events emitted before the tab was opened.
type ActivityModel struct {
	jobs   *jobserver.Server
	ch     chan activityLine
	lines  []activityLine
	width  int
	height int
}

const activityBacklog = 200

// NewActivityModel creates an ActivityModel and subscribes it to every
// channel the Job Server emits on.
func NewActivityModel(jobs *jobserver.Server) ActivityModel {
	m := ActivityModel{jobs: jobs, ch: make(chan activityLine, 256)}
	for _, typ := range []jobserver.EventType{
		jobserver.EventCreated, jobserver.EventStarted, jobserver.EventCompleted,
		jobserver.EventFailed, jobserver.EventCancelled, jobserver.EventPaused,
		jobserver.EventResumed, jobserver.EventMetrics,
	} {
		jobs.Subscribe(typ, m.onEvent)
	}
	return m
}

func (m ActivityModel) onEvent(evt jobserver.Event) {
	line := activityLine{at: time.Now(), label: string(evt.Type)}
	if evt.Job != nil {
		line.jobID = evt.Job.ID
		line.jobType = evt.Job.JobType
	}
	select {
	case m.ch <- line:
	default:
		// Slow consumer: drop rather than block the event bus.
	}
}

func (m ActivityModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m ActivityModel) waitForEvent() tea.Cmd {
	ch := m.ch
	return func() tea.Msg {
		return activityMsg(<-ch)
	}
}

func (m ActivityModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activityMsg:
		m.lines = append([]activityLine{activityLine(msg)}, m.lines...)
		if len(m.lines) > activityBacklog {
			m.lines = m.lines[:activityBacklog]
		}
		return m, m.waitForEvent()
	}
	return m, nil
}

func (m *ActivityModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m ActivityModel) View() string {
	lineLimit := m.height - 6
	if lineLimit < 5 {
		lineLimit = 5
	}

	rows := ""
	for i, l := range m.lines {
		if i >= lineLimit {
			break
		}
		ts := l.at.Format("15:04:05")
		badge := mutedBadgeStyle.Render(l.label)
		detail := ""
		if l.jobID != "" {
			detail = fmt.Sprintf(" %s (%s)", l.jobID, l.jobType)
		}
		rows += lipgloss.JoinHorizontal(lipgloss.Left,
			dimStyle.Render(ts+"  "),
			badge,
			dimStyle.Render(detail),
		) + "\n"
	}
	if len(m.lines) == 0 {
		rows = dimStyle.Render("No events yet. This tab only shows events emitted while it's open.\n")
	}

	return panelStyle.Width(max(20, m.width-2)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Live Activity"),
			rows,
		),
	)
}
