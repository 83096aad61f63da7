package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/helix/internal/client"
	"github.com/raphaelgruber/helix/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// batchUpdateMsg carries a snapshot pushed by the server.
type batchUpdateMsg models.Batch

// watchDoneMsg ends the watch stream.
type watchDoneMsg struct{ err error }

// progressModel is the bubbletea model for batch progress.
type progressModel struct {
	batchID  string
	total    int
	batch    *models.Batch
	updates  <-chan models.Batch
	done     <-chan error
	progress progress.Model
	theme    Theme
	finished bool
	quitting bool
	err      error
}

func newProgressModel(batchID string, total int, updates <-chan models.Batch, done <-chan error) progressModel {
	return progressModel{
		batchID: batchID,
		total:   total,
		updates: updates,
		done:    done,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

// Init starts listening for snapshots.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.next(), m.progress.Init())
}

// next blocks on the watch stream inside a command so Update never does.
func (m progressModel) next() tea.Cmd {
	return func() tea.Msg {
		b, ok := <-m.updates
		if !ok {
			return watchDoneMsg{err: <-m.done}
		}
		return batchUpdateMsg(b)
	}
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case batchUpdateMsg:
		b := models.Batch(msg)
		m.batch = &b
		if b.Completed() {
			m.finished = true
			return m, tea.Quit
		}
		return m, m.next()

	case watchDoneMsg:
		m.finished = true
		if msg.err != nil {
			m.err = fmt.Errorf("watch batch: %w", msg.err)
		} else if m.batch == nil || !m.batch.Completed() {
			m.err = fmt.Errorf("connection closed before batch %s completed", m.batchID)
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.finished || m.quitting {
		return m.finalView()
	}
	if m.batch == nil {
		return "Waiting for batch status...\n"
	}

	total := len(m.batch.Items)
	if total == 0 {
		total = m.total
	}
	resolved := m.batch.Resolved()
	var pct float64
	if total > 0 {
		pct = float64(resolved) / float64(total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.batch.Status.Kind))
	counts := fmt.Sprintf("%d/%d items", resolved, total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nBatch %s continues in background.\nUse 'helix status %s' to check status.\n",
			m.batchID, m.batchID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}
	if m.batch == nil {
		return ""
	}

	var out strings.Builder
	failed := len(m.batch.Items) - m.batch.Resolved()
	if failed == 0 {
		out.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n\n")
	} else {
		out.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("✓ Completed, %d of %d item(s) failed", failed, len(m.batch.Items))) + "\n\n")
	}
	for _, it := range m.batch.Items {
		out.WriteString("  " + itemLine(*m.batch, it) + "\n")
	}
	return out.String()
}

// RunBatchProgress follows a batch over the watch websocket and renders a
// progress bar until it completes.
// Returns nil on completion or Ctrl+C (the batch keeps running), error when
// the stream breaks. Item failures are shown but not returned.
func RunBatchProgress(ctx context.Context, c *client.Client, batchID string, total int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan models.Batch)
	done := make(chan error, 1)
	go func() {
		err := c.Watch(ctx, batchID, func(b models.Batch) error {
			select {
			case updates <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(updates)
		done <- err
	}()

	finalModel, err := tea.NewProgram(newProgressModel(batchID, total, updates, done)).Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		return m.err
	}
	return nil
}
