package pacer

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsmonitor/pkg/browser"
)

// fakeSession records every input primitive it receives
type fakeSession struct {
	moves   []point
	clicks  []point
	keys    []string
	scrolls []int
	cleared []string
	focused []string
	box     browser.Box
}

type point struct{ x, y float64 }

func (f *fakeSession) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeSession) WaitForSelector(ctx context.Context, sel string, d time.Duration) error {
	return nil
}
func (f *fakeSession) Exists(ctx context.Context, sel string) (bool, error)  { return false, nil }
func (f *fakeSession) HTML(ctx context.Context, sel string) (string, error)  { return "", nil }
func (f *fakeSession) CurrentURL(ctx context.Context) (string, error)        { return "", nil }
func (f *fakeSession) Click(ctx context.Context, sel string) error           { return nil }
func (f *fakeSession) ExportState(ctx context.Context) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeSession) ImportState(ctx context.Context, s json.RawMessage) error { return nil }
func (f *fakeSession) Close() error                                             { return nil }

func (f *fakeSession) ClickAt(ctx context.Context, x, y float64) error {
	f.clicks = append(f.clicks, point{x, y})
	return nil
}

func (f *fakeSession) MouseMove(ctx context.Context, x, y float64) error {
	f.moves = append(f.moves, point{x, y})
	return nil
}

func (f *fakeSession) Focus(ctx context.Context, sel string) error {
	f.focused = append(f.focused, sel)
	return nil
}

func (f *fakeSession) Clear(ctx context.Context, sel string) error {
	f.cleared = append(f.cleared, sel)
	return nil
}

func (f *fakeSession) SendKeys(ctx context.Context, sel, text string) error {
	f.keys = append(f.keys, text)
	return nil
}

func (f *fakeSession) ScrollBy(ctx context.Context, px int) error {
	f.scrolls = append(f.scrolls, px)
	return nil
}

func (f *fakeSession) ElementBox(ctx context.Context, sel string) (browser.Box, error) {
	return f.box, nil
}

func newTestPacer(f *fakeSession, seed int64) (*Pacer, *[]time.Duration) {
	p := New(f, rand.New(rand.NewSource(seed)))
	var delays []time.Duration
	p.sleepFn = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return p, &delays
}

func TestMoveToCurvedPath(t *testing.T) {
	f := &fakeSession{}
	p, delays := newTestPacer(f, 1)

	require.NoError(t, p.MoveTo(context.Background(), 800, 600))

	require.GreaterOrEqual(t, len(f.moves), minPathSteps)
	assert.LessOrEqual(t, len(f.moves), maxPathSteps)

	// Path ends exactly at the target
	last := f.moves[len(f.moves)-1]
	assert.InDelta(t, 800, last.x, 0.01)
	assert.InDelta(t, 600, last.y, 0.01)

	// Every step waits within the jitter range
	for _, d := range *delays {
		assert.GreaterOrEqual(t, d, minStepDelay)
		assert.LessOrEqual(t, d, maxStepDelay)
	}
}

func TestClickLandsInsideElement(t *testing.T) {
	f := &fakeSession{box: browser.Box{X: 100, Y: 200, Width: 50, Height: 20}}
	p, _ := newTestPacer(f, 2)

	require.NoError(t, p.Click(context.Background(), ".search-btn"))
	require.Len(t, f.clicks, 1)

	c := f.clicks[0]
	assert.GreaterOrEqual(t, c.x, 100+50*clickMargin)
	assert.LessOrEqual(t, c.x, 100+50*(1-clickMargin))
	assert.GreaterOrEqual(t, c.y, 200+20*clickMargin)
	assert.LessOrEqual(t, c.y, 200+20*(1-clickMargin))

	// Pointer moved to the click point first
	last := f.moves[len(f.moves)-1]
	assert.InDelta(t, c.x, last.x, 0.01)
	assert.InDelta(t, c.y, last.y, 0.01)
}

func TestClickRejectsZeroSizeElement(t *testing.T) {
	f := &fakeSession{box: browser.Box{X: 10, Y: 10}}
	p, _ := newTestPacer(f, 3)

	assert.Error(t, p.Click(context.Background(), ".hidden"))
	assert.Empty(t, f.clicks)
}

func TestTypeKeyByKey(t *testing.T) {
	f := &fakeSession{}
	p, delays := newTestPacer(f, 4)

	require.NoError(t, p.Type(context.Background(), "#search-input", "咖啡 店"))

	assert.Equal(t, []string{"#search-input"}, f.focused)
	assert.Equal(t, []string{"#search-input"}, f.cleared)
	assert.Equal(t, []string{"咖", "啡", " ", "店"}, f.keys)

	require.Len(t, *delays, 4)
	for i, d := range *delays {
		assert.GreaterOrEqual(t, d, minKeyDelay)
		if i != 2 {
			assert.LessOrEqual(t, d, maxKeyDelay)
		}
	}
	// The space gets the extra word-boundary pause
	assert.GreaterOrEqual(t, (*delays)[2], 2*minKeyDelay)
	assert.LessOrEqual(t, (*delays)[2], 2*maxKeyDelay)
}

func TestScrollSegments(t *testing.T) {
	f := &fakeSession{}
	p, delays := newTestPacer(f, 5)

	require.NoError(t, p.Scroll(context.Background(), 3000))

	require.GreaterOrEqual(t, len(f.scrolls), minScrollSegments)
	assert.LessOrEqual(t, len(f.scrolls), maxScrollSegments)

	total := 0
	for _, s := range f.scrolls {
		total += s
	}
	assert.Equal(t, 3000, total)

	for _, d := range *delays {
		assert.GreaterOrEqual(t, d, minScrollPause)
		assert.LessOrEqual(t, d, maxScrollPause)
	}
}

func TestScrollZeroIsNoop(t *testing.T) {
	f := &fakeSession{}
	p, _ := newTestPacer(f, 6)

	require.NoError(t, p.Scroll(context.Background(), 0))
	assert.Empty(t, f.scrolls)
}

func TestCancellationStopsGesture(t *testing.T) {
	f := &fakeSession{}
	p, _ := newTestPacer(f, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.MoveTo(ctx, 500, 500), context.Canceled)
	assert.Less(t, len(f.moves), minPathSteps)
}
