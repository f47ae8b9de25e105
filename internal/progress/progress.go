// Package progress reports transfer progress to a terminal (progress bars) or
// to the event bus, behind one Reporter interface.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/sharefold/sharefold/internal/events"
)

// Reporter receives byte-level progress of one transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// Percent converts bytes done into a whole percentage in [0, 100].
// An empty transfer is 100% complete.
func Percent(current, total int64) int {
	if total <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int(current * 100 / total)
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a CLI reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	return NewCLIProgressTo(os.Stderr)
}

// NewCLIProgressTo creates a CLI reporter writing to out.
func NewCLIProgressTo(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error abandons the bar and prints err.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Exit()
	}
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// PercentReporter turns byte updates into a non-decreasing stream of whole
// percentages. fn is called only when the percentage grows; Finish always
// ends the stream with 100.
type PercentReporter struct {
	fn    func(percent int, current, total int64)
	mu    sync.Mutex
	total int64
	last  int
}

// NewPercentReporter creates a reporter that calls fn on every new percentage.
func NewPercentReporter(fn func(percent int, current, total int64)) *PercentReporter {
	return &PercentReporter{fn: fn, last: -1}
}

// Start resets the stream and emits 0.
func (p *PercentReporter) Start(total int64, description string) {
	p.mu.Lock()
	p.total = total
	p.last = -1
	p.mu.Unlock()
	p.emit(0)
}

// Update emits the percentage for current if it is higher than the last one.
func (p *PercentReporter) Update(current int64) {
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	pct := Percent(current, total)
	// 100 is reserved for Finish so it is only seen on success
	if pct >= 100 {
		pct = 99
	}
	p.emit(pct, current)
}

// Finish emits 100.
func (p *PercentReporter) Finish() {
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	p.emit(100, total)
}

// Error does nothing; failures are reported by the caller.
func (p *PercentReporter) Error(err error) {}

// SetDescription does nothing.
func (p *PercentReporter) SetDescription(desc string) {}

// Last returns the last emitted percentage, or -1 before Start.
func (p *PercentReporter) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *PercentReporter) emit(pct int, current ...int64) {
	p.mu.Lock()
	if pct <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = pct
	total := p.total
	p.mu.Unlock()

	var cur int64
	if len(current) > 0 {
		cur = current[0]
	}
	if p.fn != nil {
		p.fn(pct, cur, total)
	}
}

// BusProgress publishes upload progress events for one file.
type BusProgress struct {
	*PercentReporter
	eventBus *events.EventBus
	fileName string
}

// NewBusProgress creates a reporter publishing UploadProgress events for fileName.
func NewBusProgress(eventBus *events.EventBus, fileName string) *BusProgress {
	b := &BusProgress{eventBus: eventBus, fileName: fileName}
	b.PercentReporter = NewPercentReporter(func(pct int, cur, total int64) {
		b.eventBus.PublishUploadProgress(b.fileName, pct, cur, total)
	})
	return b
}

// Multi fans progress out to several reporters.
type Multi []Reporter

// NewMulti drops nil reporters.
func NewMulti(reporters ...Reporter) Multi {
	out := make(Multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m Multi) Start(total int64, description string) {
	for _, r := range m {
		r.Start(total, description)
	}
}

func (m Multi) Update(current int64) {
	for _, r := range m {
		r.Update(current)
	}
}

func (m Multi) Finish() {
	for _, r := range m {
		r.Finish()
	}
}

func (m Multi) Error(err error) {
	for _, r := range m {
		r.Error(err)
	}
}

func (m Multi) SetDescription(desc string) {
	for _, r := range m {
		r.SetDescription(desc)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.reporter.Update(pr.current)
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (pr *ProgressReader) BytesRead() int64 {
	return pr.current
}
