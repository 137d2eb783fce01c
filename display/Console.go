package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/samuelfneumann/pongdqn/experiment/tracker"
)

// Console prints a styled line for each window summary. It implements
// tracker.Sink.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	label lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
}

// NewConsole returns a Console writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{
		out: out,
		label: lipgloss.NewStyle().
			Background(lipgloss.Color("13")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1),
		good: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		bad:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Emit implements the tracker.Sink interface
func (c *Console) Emit(_ context.Context, s tracker.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.out, c.Format(s))
	return err
}

// Format renders a summary as a single line
func (c *Console) Format(s tracker.Summary) string {
	reward := c.good
	if s.EpisodeAvgReward < 0 {
		reward = c.bad
	}

	fields := []string{
		c.label.Render("step " + humanize.Comma(int64(s.Step))),
		reward.Render(fmt.Sprintf("avg_ep_r %.4f", s.EpisodeAvgReward)),
		fmt.Sprintf("max_ep_r %.4f", s.EpisodeMaxReward),
		fmt.Sprintf("min_ep_r %.4f", s.EpisodeMinReward),
		fmt.Sprintf("avg_r %.4f", s.AverageReward),
		fmt.Sprintf("avg_l %.6f", s.AverageLoss),
		fmt.Sprintf("avg_q %3.6f", s.AverageQ),
		fmt.Sprintf("# game %d", s.NumGames),
	}
	return strings.Join(fields, "  ")
}
