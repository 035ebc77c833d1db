package report

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"sparqlbench/internal/bench"
)

// ProgressBar renders completed mix runs as a progress bar.
type ProgressBar struct {
	bench.NopListener

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

var _ bench.ProgressListener = (*ProgressBar)(nil)

// NewProgressBar creates a bar for total mix runs. A total <= 0 renders a
// spinner.
func NewProgressBar(w io.Writer, total int, description string) *ProgressBar {
	if total <= 0 {
		total = -1
	}
	return &ProgressBar{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("runs"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionEnableColorCodes(true),
		),
	}
}

func (p *ProgressBar) AfterMix(*bench.OperationMix, *bench.OperationMixRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.Add(1)
}

func (p *ProgressBar) Finish(bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.Finish()
}
