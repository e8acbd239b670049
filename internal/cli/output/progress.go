package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar displays completed operations out of a known total.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int64
	current int64
	width   int
	step    int64
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar for total operations. It redraws
// at most once per percent of progress.
func NewProgressBar(w io.Writer, title string, total int64) *ProgressBar {
	step := total / 100
	if step < 1 {
		step = 1
	}
	return &ProgressBar{
		w:     w,
		title: title,
		total: total,
		width: 40,
		step:  step,
	}
}

// Increment adds n completed operations. It is safe for concurrent use.
func (p *ProgressBar) Increment(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := p.current / p.step
	p.current += n
	if p.current/p.step != before {
		p.render()
	}
}

// Finish draws the final state and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	percent := 1.0
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total)
	}
	if percent > 1 {
		percent = 1
	}

	filled := int(float64(p.width) * percent)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", p.width-filled)

	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% (%d/%d)", p.title, bar, percent*100, p.current, p.total)
}
