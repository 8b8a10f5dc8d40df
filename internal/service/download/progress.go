package download

import "time"

const (
	// progressBytesStep is the transferred amount that triggers a progress report.
	progressBytesStep = 512 * 1024
	// progressInterval is the elapsed time that triggers a progress report.
	progressInterval = time.Second
	// progressMinDelta is the smallest progress change worth reporting when the total is known.
	progressMinDelta = 0.01
)

// progressTracker throttles progress reports of one transfer.
type progressTracker struct {
	report       ProgressFunc
	now          func() time.Time
	lastBytes    int64
	lastProgress float64
	lastAt       time.Time
}

func newProgressTracker(report ProgressFunc, now func() time.Time) *progressTracker {
	return &progressTracker{
		report: report,
		now:    now,
		lastAt: now(),
	}
}

// update reports progress when enough bytes or time have passed since the last report.
func (p *progressTracker) update(downloaded, total int64) {
	if p.report == nil {
		return
	}

	now := p.now()

	due := downloaded-p.lastBytes >= progressBytesStep || now.Sub(p.lastAt) >= progressInterval
	if !due {
		return
	}

	progress := fraction(downloaded, total)
	if total > 0 && progress-p.lastProgress < progressMinDelta {
		return
	}

	p.emit(downloaded, total, progress, now)
}

// finish always reports the final amount.
func (p *progressTracker) finish(downloaded, total int64) {
	if p.report == nil {
		return
	}

	p.emit(downloaded, total, fraction(downloaded, total), p.now())
}

func (p *progressTracker) emit(downloaded, total int64, progress float64, now time.Time) {
	p.lastBytes = downloaded
	p.lastProgress = progress
	p.lastAt = now

	p.report(downloaded, total)
}

// fraction returns downloaded/total clamped to [0, 1], or 0 when the total is unknown.
func fraction(downloaded, total int64) float64 {
	if total <= 0 || downloaded <= 0 {
		return 0
	}

	if downloaded >= total {
		return 1
	}

	return float64(downloaded) / float64(total)
}
