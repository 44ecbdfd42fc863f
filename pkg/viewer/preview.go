package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
)

// PreviewRequest is one set of oblique plane parameters from interactive
// input.
type PreviewRequest struct {
	X, Z           float64
	AngleA, AngleB float64
}

// Preview drives the interactive oblique-slice preview. Parameter changes
// are debounced: each request restarts a delay timer, and when the delay
// elapses the extraction runs. A newer request cancels both a pending
// delay and an in-flight extraction, so at most one extraction runs at a
// time and superseded requests simply produce no output.
type Preview struct {
	viewer  *Viewer
	delay   time.Duration
	deliver func(*models.Raster)

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc

	// gen stamps each request. A run whose stamp is no longer current was
	// superseded between its timer firing and its goroutine starting, a
	// window timer.Stop cannot close.
	gen    uint64
	closed bool
}

// NewPreview creates a preview loop delivering completed rasters to the
// given callback. The callback runs on the extraction goroutine and must
// not block for long.
func NewPreview(v *Viewer, delay time.Duration, deliver func(*models.Raster)) *Preview {
	return &Preview{viewer: v, delay: delay, deliver: deliver}
}

// Request schedules an extraction for the given plane parameters,
// superseding any pending or in-flight one.
func (p *Preview) Request(req PreviewRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.timer = time.AfterFunc(p.delay, func() { p.run(gen, req) })
}

// run executes one extraction unless it has been superseded meanwhile.
func (p *Preview) run(gen uint64, req PreviewRequest) {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	r, err := p.viewer.ExtractObliquePlane(ctx, req.X, req.Z, req.AngleA, req.AngleB)
	if err != nil {
		// A superseded extraction is not an error; anything else is worth
		// a log line but never crashes the input loop.
		if !errors.Is(err, context.Canceled) {
			logging.Errorf("preview extraction failed: %v", err)
		}
		return
	}

	// Don't deliver if a newer request arrived while extracting.
	p.mu.Lock()
	superseded := p.closed || gen != p.gen
	p.mu.Unlock()
	if superseded || ctx.Err() != nil {
		return
	}
	p.deliver(r)
}

// Close cancels any pending or in-flight extraction and stops accepting
// requests.
func (p *Preview) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
