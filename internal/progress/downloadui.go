package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/models"
)

// DownloadUI draws mpb progress bars for files being saved locally. Without a
// terminal it prints one line per file instead.
type DownloadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
}

// DownloadFileBar is the bar of one saved file. It implements Reporter.
type DownloadFileBar struct {
	bar        *mpb.Bar
	ui         *DownloadUI
	remoteName string
	localPath  string
	size       int64
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewDownloadUI creates a download UI on stderr.
func NewDownloadUI() *DownloadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
		return &DownloadUI{
			progress: mpb.New(
				mpb.WithOutput(os.Stderr),
				mpb.WithRefreshRate(constants.ProgressUpdateInterval),
				mpb.WithWidth(80),
			),
			out:        os.Stderr,
			isTerminal: true,
		}
	}
	return newPlainDownloadUI(os.Stderr)
}

func newPlainDownloadUI(out io.Writer) *DownloadUI {
	return &DownloadUI{
		progress: mpb.New(mpb.WithOutput(io.Discard)),
		out:      out,
	}
}

// AddFileBar creates the bar for remoteName being written to localPath.
func (u *DownloadUI) AddFileBar(remoteName, localPath string, size int64) *DownloadFileBar {
	now := time.Now()
	fb := &DownloadFileBar{
		ui:         u,
		remoteName: remoteName,
		localPath:  localPath,
		size:       size,
		startTime:  now,
		lastUpdate: now,
	}

	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("%s ← %s", truncatePath(localPath, 2), remoteName), decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Downloading: %s (%s) ← %s\n",
			truncatePath(localPath, 2), models.FormatSize(size), remoteName)
	}
	return fb
}

// Start records the real size once the response headers are in.
func (f *DownloadFileBar) Start(total int64, description string) {
	if total > 0 && total != f.size {
		f.size = total
		if f.bar != nil {
			f.bar.SetTotal(total, false)
		}
	}
	f.startTime = time.Now()
	f.lastUpdate = f.startTime
}

// Update advances the bar to current bytes, throttled to the refresh rate.
// EwmaIncrBy is called on every tick so mpb sees time passing even when no
// bytes moved.
func (f *DownloadFileBar) Update(current int64) {
	if f.bar == nil {
		return
	}
	now := time.Now()
	elapsed := now.Sub(f.lastUpdate)
	if elapsed < constants.ProgressUpdateInterval {
		return
	}
	f.bar.EwmaIncrBy(int(current-f.lastBytes), elapsed)
	f.lastBytes = current
	f.lastUpdate = now
}

// Finish completes the bar at exactly 100% and prints a summary line.
func (f *DownloadFileBar) Finish() {
	elapsed := time.Since(f.startTime)
	if f.bar != nil {
		f.bar.SetCurrent(f.size)
		f.bar.SetTotal(f.size, true)
	}
	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(f.size) / secs / (1024 * 1024)
	}
	f.ui.print(fmt.Sprintf("✓ %s ← %s (%s, %s, %.1f MiB/s)\n",
		truncatePath(f.localPath, 2), f.remoteName,
		models.FormatSize(f.size), elapsed.Round(time.Second), speed))
}

// Error keeps the bar visible and prints the failure.
func (f *DownloadFileBar) Error(err error) {
	if f.bar != nil {
		f.bar.Abort(false)
	}
	f.ui.print(fmt.Sprintf("✗ %s ← %s: %v\n", truncatePath(f.localPath, 2), f.remoteName, err))
}

// SetDescription does nothing; the label is fixed when the bar is created.
func (f *DownloadFileBar) SetDescription(desc string) {}

// print writes through mpb when bars are live so redraws stay intact.
func (u *DownloadUI) print(msg string) {
	if u.isTerminal && u.progress != nil {
		_, _ = u.progress.Write([]byte(msg))
		return
	}
	fmt.Fprint(u.out, msg)
}

// Wait blocks until all progress bars complete
func (u *DownloadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that prints above the progress bars.
func (u *DownloadUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns whether output is to a terminal
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
