package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"dyfav/pkg/materializer"
)

const barWidth = 20

// ProgressDisplay prints a one-line progress bar that is redrawn after every
// item. In verbose mode each item gets its own line instead.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	done      int
	counts    map[materializer.Status]int
	startTime time.Time
	verbose   bool
	now       func() time.Time
}

// NewProgressDisplay creates a progress display for total items
func NewProgressDisplay(out io.Writer, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		total:     total,
		counts:    make(map[materializer.Status]int),
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// Observe records one finished item and redraws
func (p *ProgressDisplay) Observe(res materializer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.counts[res.Status]++

	if p.verbose {
		p.printItem(res)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) printItem(res materializer.Result) {
	mark := Green("✓")
	switch res.Status {
	case materializer.StatusSkipped:
		mark = Dim("·")
	case materializer.StatusUnsupported:
		mark = Yellow("?")
	case materializer.StatusFailed:
		mark = Red("✗")
	}
	line := fmt.Sprintf("%s [%d/%d] %s %s", mark, p.done, p.total, res.ItemID, Dim(res.Folder))
	if res.Err != nil {
		line += " " + Red(res.Err.Error())
	}
	fmt.Fprintln(p.out, line)
}

func (p *ProgressDisplay) printProgress() {
	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d • %d new • %d skipped • %s",
		bar,
		p.done,
		p.total,
		p.counts[materializer.StatusDownloaded],
		p.counts[materializer.StatusSkipped],
		p.eta(),
	)
	if n := p.counts[materializer.StatusFailed]; n > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", n))
	}
	fmt.Fprintf(p.out, "\r\033[K%s", line)
}

// Complete ends the progress line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.verbose {
		fmt.Fprintln(p.out)
	}
}

// eta estimates time remaining from the average item duration
func (p *ProgressDisplay) eta() string {
	if p.done == 0 {
		return "calculating..."
	}
	if p.done >= p.total {
		return "done"
	}
	perItem := p.now().Sub(p.startTime) / time.Duration(p.done)
	return FormatDuration(perItem * time.Duration(p.total-p.done))
}

// FormatDuration formats a duration in a compact human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
