package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/models"
)

// DashboardModel shows the overview: job counts by status and the most
// recent jobs across all pipelines.
type DashboardModel struct {
	jobs     *jobserver.Server
	list     []*models.Job
	stats    models.Stats
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

// dashLoadedMsg carries a refreshed job snapshot.
type dashLoadedMsg struct {
	jobs  []*models.Job
	stats models.Stats
}

// NewDashboardModel creates a DashboardModel.
func NewDashboardModel(jobs *jobserver.Server) DashboardModel {
	return DashboardModel{jobs: jobs, loading: true}
}

func (d DashboardModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d DashboardModel) loadCmd() tea.Cmd {
	jobs := d.jobs
	return func() tea.Msg {
		all := jobs.GetAllJobs(jobserver.JobFilter{})
		return dashLoadedMsg{jobs: all, stats: jobs.GetStats()}
	}
}

func (d DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashLoadedMsg:
		d.list = msg.jobs
		d.stats = msg.stats
		d.loading = false
		d.lastLoad = time.Now()
		return d, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return d.loadCmd()()
		})
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d DashboardModel) View() string {
	if d.loading && len(d.list) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading jobs...")
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Running", d.stats.RunningCount, mediumStyle, cardW),
		renderCounter("Queued", d.stats.QueuedCount, highStyle, cardW),
		renderCounter("Completed", d.stats.CompletedCount, okStyle, cardW),
		renderCounter("Failed", d.stats.FailedCount, criticalStyle, cardW),
	)

	lineLimit := d.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, j := range d.list {
		if i >= lineLimit {
			break
		}
		rows += renderJobRow(j) + "\n"
	}
	if len(d.list) == 0 {
		rows = dimStyle.Render("No jobs yet. Jobs from other dupctl processes are not shown here.\n")
	}

	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Jobs"),
				dimStyle.Render("ID                                   Type        Pipeline    Status"),
				rows,
				refreshInfo,
			),
		),
	)
}

func renderJobRow(j *models.Job) string {
	statusFmt := jobStatusBadge(j.Status)
	id := truncate(j.ID, 36)
	jobType := truncate(j.JobType, 10)
	pipeline := truncate(j.PipelineID, 10)
	return lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(38).Foreground(ink).Render(id),
		lipgloss.NewStyle().Width(12).Foreground(slate).Render(jobType),
		lipgloss.NewStyle().Width(12).Foreground(slate).Render(pipeline),
		statusFmt,
	)
}

func jobStatusBadge(status models.JobStatus) string {
	switch status {
	case models.JobCompleted:
		return lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render(string(status))
	case models.JobFailed:
		return lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1).Render(string(status))
	case models.JobRunning:
		return lipgloss.NewStyle().Foreground(bgDark).Background(blue).Padding(0, 1).Render(string(status))
	case models.JobCancelled:
		return mutedBadgeStyle.Render(string(status))
	default:
		return lipgloss.NewStyle().Foreground(bgDark).Background(yellow).Padding(0, 1).Render(string(status))
	}
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
