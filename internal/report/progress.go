package report

import (
	"context"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"swingtrader/internal/engine"
)

// ProgressObserver draws a terminal progress bar, one tick per simulated
// day. The bar is sized on the first report.
type ProgressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

// NewProgressObserver creates a ProgressObserver writing to w, or stderr
// when w is nil.
func NewProgressObserver(w io.Writer) *ProgressObserver {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressObserver{w: w}
}

var _ engine.Observer = (*ProgressObserver)(nil)

// OnDay implements engine.Observer.
func (o *ProgressObserver) OnDay(_ context.Context, r engine.DayReport) {
	if o.bar == nil {
		o.bar = progressbar.NewOptions(r.Days,
			progressbar.OptionSetWriter(o.w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetDescription("Backtesting in progress..."),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}
	_ = o.bar.Add(1)
	if r.Day == r.Days {
		_ = o.bar.Finish()
	}
}
