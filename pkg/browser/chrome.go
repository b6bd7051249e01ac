package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"xhsmonitor/pkg/config"
	errs "xhsmonitor/pkg/errors"
	"xhsmonitor/pkg/fingerprint"
	"xhsmonitor/pkg/logger"
)

// ChromeOpener launches Chrome tabs through chromedp
type ChromeOpener struct {
	cfg    config.BrowserConfig
	logger logger.Logger
}

// NewChromeOpener creates an opener from browser config
func NewChromeOpener(cfg config.BrowserConfig) *ChromeOpener {
	return &ChromeOpener{
		cfg:    cfg,
		logger: logger.MustGetLogger().WithField("component", "browser"),
	}
}

// Open starts a browser with the profile's identity applied before any
// page script can observe the defaults, then restores prior state.
func (o *ChromeOpener) Open(ctx context.Context, profile fingerprint.Profile, state json.RawMessage) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", profile.Locale),
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(profile.Viewport.Width, profile.Viewport.Height),
	)
	if o.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		logger:      o.logger,
	}

	headers := network.Headers{}
	for k, v := range profile.Headers {
		headers[k] = v
	}

	err := s.run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetTimezoneOverride(profile.Timezone),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(profile.SpoofScript()).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to prepare browser session", err)
	}

	if len(state) > 0 {
		if err := s.ImportState(ctx, state); err != nil {
			s.Close()
			return nil, err
		}
	}

	o.logger.DebugWithFields("browser session opened", map[string]interface{}{
		"headless":       o.cfg.Headless,
		"viewport_w":     profile.Viewport.Width,
		"viewport_h":     profile.Viewport.Height,
		"restored_state": len(state) > 0,
	})

	return s, nil
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      logger.Logger
}

// run executes actions on the tab while honoring the caller's context
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("failed to navigate to %s", url), err)
	}
	return nil
}

func (s *chromeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("selector %q did not appear", selector), err)
	}
	return nil
}

func (s *chromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := s.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (s *chromeSession) HTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", errs.Wrap(errs.ErrorTypeExtraction, fmt.Sprintf("failed to read HTML for %q", selector), err)
	}
	return html, nil
}

func (s *chromeSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) ClickAt(ctx context.Context, x, y float64) error {
	return s.run(ctx, chromedp.MouseClickXY(x, y))
}

func (s *chromeSession) MouseMove(ctx context.Context, x, y float64) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (s *chromeSession) Focus(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Focus(selector, chromedp.ByQuery))
}

func (s *chromeSession) Clear(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Clear(selector, chromedp.ByQuery))
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, text string) error {
	return s.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (s *chromeSession) ScrollBy(ctx context.Context, pixels int) error {
	script := fmt.Sprintf(`window.scrollBy({top: %d, left: 0, behavior: 'smooth'})`, pixels)
	return s.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *chromeSession) ElementBox(ctx context.Context, selector string) (Box, error) {
	var result struct {
		Found bool `json:"found"`
		Box
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return {found: false};
		const r = el.getBoundingClientRect();
		return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, selector)

	if err := s.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return Box{}, err
	}
	if !result.Found {
		return Box{}, fmt.Errorf("no element matches %q", selector)
	}
	return result.Box, nil
}

func (s *chromeSession) ExportState(ctx context.Context) (json.RawMessage, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export session state: %w", err)
	}

	payload := sessionPayload{Cookies: make([]sessionCookie, 0, len(cookies))}
	for _, c := range cookies {
		payload.Cookies = append(payload.Cookies, sessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		})
	}

	return json.Marshal(payload)
}

func (s *chromeSession) ImportState(ctx context.Context, state json.RawMessage) error {
	var payload sessionPayload
	if err := json.Unmarshal(state, &payload); err != nil {
		return fmt.Errorf("malformed session state: %w", err)
	}

	params := make([]*network.CookieParam, 0, len(payload.Cookies))
	for _, c := range payload.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			epoch := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &epoch
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		params = append(params, p)
	}

	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to restore session state: %w", err)
	}

	s.logger.DebugWithFields("session state restored", map[string]interface{}{
		"cookies": len(params),
	})
	return nil
}

// Close shuts down the tab and the browser process. Safe to call more
// than once.
func (s *chromeSession) Close() error {
	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	return nil
}
