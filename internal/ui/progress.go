package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps the progressbar library with our styling
type ProgressBar struct {
	bar        *progressbar.ProgressBar
	startTime  time.Time
	totalBytes int64
}

// NewProgressBar creates a new progress bar for dataset downloads
func NewProgressBar(totalBytes int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{
		bar:        bar,
		startTime:  time.Now(),
		totalBytes: totalBytes,
	}
}

// Update updates the progress bar with current bytes
func (p *ProgressBar) Update(currentBytes int64) {
	p.bar.Set64(currentBytes)
}

// Add advances the progress bar by a byte delta
func (p *ProgressBar) Add(delta int64) {
	p.bar.Add64(delta)
}

// Describe replaces the progress bar description
func (p *ProgressBar) Describe(desc string) {
	p.bar.Describe(desc)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.bar.Finish()
}

// EvalProgress renders the advance of a benchmark run: one step per
// subject/pipeline combination rather than per byte.
type EvalProgress struct {
	bar   *progressbar.ProgressBar
	total int
}

// NewEvalProgress creates a progress tracker for an evaluation run
func NewEvalProgress(totalSteps int, description string) *EvalProgress {
	bar := progressbar.NewOptions(
		totalSteps,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	return &EvalProgress{bar: bar, total: totalSteps}
}

// Step advances by one scored combination
func (e *EvalProgress) Step(label string) {
	e.bar.Describe(TruncateString(label, 48))
	e.bar.Add(1)
}

// Finish completes the bar
func (e *EvalProgress) Finish() {
	e.bar.Finish()
}

// FormatBytes formats bytes into human readable format
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

// FormatDuration formats duration into human readable format
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string with ellipsis
func TruncateString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	if maxLen <= 3 {
		return str[:maxLen]
	}
	return str[:maxLen-3] + "..."
}

// PadRight pads a string to the right
func PadRight(str string, length int) string {
	if len(str) >= length {
		return str
	}
	return str + strings.Repeat(" ", length-len(str))
}
