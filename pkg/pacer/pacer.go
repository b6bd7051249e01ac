// Package pacer drives a browser session at human speed. Pointer
// movement follows curved paths, typing has per-key latency, and
// scrolling happens in bursts with reading pauses. All delays come from
// an injected rand source so tests can pin them.
package pacer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
	"unicode"

	"xhsmonitor/pkg/browser"
)

// Movement tuning. Paths use 10 to 30 steps with 20 to 80ms between
// them; clicks land at 20 to 80 percent of the element box on each axis.
const (
	minPathSteps = 10
	maxPathSteps = 30

	minStepDelay = 20 * time.Millisecond
	maxStepDelay = 80 * time.Millisecond

	minKeyDelay = 50 * time.Millisecond
	maxKeyDelay = 200 * time.Millisecond

	minScrollSegments = 3
	maxScrollSegments = 6

	minScrollPause = 300 * time.Millisecond
	maxScrollPause = 800 * time.Millisecond

	clickMargin = 0.2
)

// Pacer wraps a session with humanized input
type Pacer struct {
	session browser.Session
	rand    *rand.Rand

	// sleepFn is swapped in tests to observe delays without waiting
	sleepFn func(context.Context, time.Duration) error

	// last known pointer position
	lastX float64
	lastY float64
}

// New creates a pacer for the session. The pointer starts near the top
// left, as it does in a freshly opened window.
func New(session browser.Session, r *rand.Rand) *Pacer {
	p := &Pacer{session: session, rand: r, sleepFn: sleepFor}
	p.lastX = p.between(50, 300)
	p.lastY = p.between(50, 200)
	return p
}

// MoveTo moves the pointer to the target along a curved path
func (p *Pacer) MoveTo(ctx context.Context, x, y float64) error {
	steps := minPathSteps + p.rand.Intn(maxPathSteps-minPathSteps+1)

	// Control points bow the path sideways so it never runs straight
	c1x, c1y := p.controlPoint(p.lastX, p.lastY, x, y)
	c2x, c2y := p.controlPoint(p.lastX, p.lastY, x, y)

	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		px := cubicBezier(t, p.lastX, c1x, c2x, x)
		py := cubicBezier(t, p.lastY, c1y, c2y, y)

		if err := p.session.MouseMove(ctx, px, py); err != nil {
			return err
		}
		if err := p.sleep(ctx, p.durationBetween(minStepDelay, maxStepDelay)); err != nil {
			return err
		}
	}

	p.lastX, p.lastY = x, y
	return nil
}

// Click moves to a random interior point of the element and clicks it
func (p *Pacer) Click(ctx context.Context, selector string) error {
	box, err := p.session.ElementBox(ctx, selector)
	if err != nil {
		return err
	}
	if box.Width <= 0 || box.Height <= 0 {
		return fmt.Errorf("element %q has no clickable area", selector)
	}

	x := box.X + box.Width*p.between(clickMargin, 1-clickMargin)
	y := box.Y + box.Height*p.between(clickMargin, 1-clickMargin)

	if err := p.MoveTo(ctx, x, y); err != nil {
		return err
	}
	return p.session.ClickAt(ctx, x, y)
}

// Type clears the field and types the text one key at a time, pausing
// a little longer at word boundaries
func (p *Pacer) Type(ctx context.Context, selector, text string) error {
	if err := p.session.Focus(ctx, selector); err != nil {
		return err
	}
	if err := p.session.Clear(ctx, selector); err != nil {
		return err
	}

	for _, r := range text {
		if err := p.session.SendKeys(ctx, selector, string(r)); err != nil {
			return err
		}

		delay := p.durationBetween(minKeyDelay, maxKeyDelay)
		if unicode.IsSpace(r) {
			delay += p.durationBetween(minKeyDelay, maxKeyDelay)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Scroll covers the total distance in several uneven bursts with
// reading pauses between them
func (p *Pacer) Scroll(ctx context.Context, totalPixels int) error {
	if totalPixels == 0 {
		return nil
	}

	segments := minScrollSegments + p.rand.Intn(maxScrollSegments-minScrollSegments+1)
	remaining := totalPixels

	for i := 0; i < segments; i++ {
		var step int
		if i == segments-1 {
			step = remaining
		} else {
			share := remaining / (segments - i)
			jitter := int(float64(share) * p.between(-0.3, 0.3))
			step = share + jitter
		}
		remaining -= step

		if err := p.session.ScrollBy(ctx, step); err != nil {
			return err
		}
		if err := p.sleep(ctx, p.durationBetween(minScrollPause, maxScrollPause)); err != nil {
			return err
		}
	}
	return nil
}

// Pause waits a random duration in [min, max]
func (p *Pacer) Pause(ctx context.Context, min, max time.Duration) error {
	return p.sleep(ctx, p.durationBetween(min, max))
}

// controlPoint picks a point offset perpendicular to the segment so the
// bezier curve arcs instead of tracing the straight line
func (p *Pacer) controlPoint(x1, y1, x2, y2 float64) (float64, float64) {
	t := p.between(0.2, 0.8)
	mx := x1 + (x2-x1)*t
	my := y1 + (y2-y1)*t

	dist := math.Hypot(x2-x1, y2-y1)
	offset := dist * p.between(0.05, 0.25)
	if p.rand.Intn(2) == 0 {
		offset = -offset
	}

	angle := math.Atan2(y2-y1, x2-x1) + math.Pi/2
	return mx + offset*math.Cos(angle), my + offset*math.Sin(angle)
}

func cubicBezier(t, p0, p1, p2, p3 float64) float64 {
	u := 1 - t
	return u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
}

func (p *Pacer) between(lo, hi float64) float64 {
	return lo + p.rand.Float64()*(hi-lo)
}

func (p *Pacer) durationBetween(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(p.rand.Int63n(int64(hi-lo)+1))
}

func (p *Pacer) sleep(ctx context.Context, d time.Duration) error {
	return p.sleepFn(ctx, d)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
