// Package monitor runs keyword monitoring end to end: per keyword it
// picks an account, authenticates a browser session under a fresh
// fingerprint, searches, extracts posts and optionally comments, then
// records the account outcome. The whole run is a single control loop;
// parallel sessions would both burn accounts and produce an unnatural
// traffic pattern.
package monitor

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/google/uuid"

	"xhsmonitor/pkg/account"
	"xhsmonitor/pkg/browser"
	"xhsmonitor/pkg/config"
	errs "xhsmonitor/pkg/errors"
	"xhsmonitor/pkg/extract"
	"xhsmonitor/pkg/fingerprint"
	"xhsmonitor/pkg/logger"
	"xhsmonitor/pkg/models"
	"xhsmonitor/pkg/pacer"
	"xhsmonitor/pkg/ratelimit"
	"xhsmonitor/pkg/retry"
	"xhsmonitor/pkg/rotation"
	"xhsmonitor/pkg/storage"
	"xhsmonitor/pkg/timewindow"
)

const (
	exploreURL      = "https://www.xiaohongshu.com/explore"
	loginURL        = "https://www.xiaohongshu.com/login"
	searchURLFormat = "https://www.xiaohongshu.com/search_result?keyword=%s&source=web_search_result_notes"

	selSearchInput   = "input[type='text'], .search-input"
	selLoginUser     = "input[type='text'], input[placeholder*='手机号']"
	selLoginPassword = "input[type='password']"
	selLoginSubmit   = "button[type='submit'], .login-button"
	selChallenge     = ".captcha"
	selLoggedIn      = ".side-bar .publish-video, .avatar-wrapper, .user-info"
	selNoteItem      = ".note-item"
	selCommentItem   = ".comment-item"

	challengePollInterval = 3 * time.Second

	minKeywordDelay = 5 * time.Second
	maxKeywordDelay = 10 * time.Second

	// searchesPerHour bounds how many keyword searches one process may
	// fire, independent of keyword count
	searchesPerHour = 40

	// detailPagesPerMinute bounds detail page visits during comment
	// extraction; a keyword with many hits must not turn into a burst
	// of back-to-back page loads
	detailPagesPerMinute = 12
)

// ErrBrowserUnavailable marks a failure to open a browser session at
// all. Unlike page-level failures it aborts the whole run.
var ErrBrowserUnavailable = stderrors.New("browser unavailable")

// gestures is the humanized input surface the orchestrator drives.
// Tests substitute an instant implementation.
type gestures interface {
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, totalPixels int) error
	Pause(ctx context.Context, min, max time.Duration) error
}

// Orchestrator owns one monitoring run at a time
type Orchestrator struct {
	cfg           *config.Config
	registry      *account.Registry
	scheduler     *rotation.Scheduler
	opener        browser.Opener
	profiles      *fingerprint.Generator
	parser        *timewindow.Parser
	extractor     *extract.Extractor
	store         *storage.Manager
	limiter       ratelimit.Limiter
	detailLimiter ratelimit.Limiter
	logger        logger.Logger
	rand          *rand.Rand

	now         func() time.Time
	newGestures func(browser.Session) gestures
	sleepFn     func(context.Context, time.Duration) error
}

// New wires an orchestrator from its collaborators
func New(cfg *config.Config, registry *account.Registry, opener browser.Opener, store *storage.Manager) *Orchestrator {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	parser := timewindow.NewParser()

	o := &Orchestrator{
		cfg:           cfg,
		registry:      registry,
		scheduler:     rotation.NewScheduler(cfg.Accounts.CooldownHours),
		opener:        opener,
		profiles:      fingerprint.NewGenerator(r),
		parser:        parser,
		extractor:     extract.New(parser),
		store:         store,
		limiter:       ratelimit.NewSlidingWindow(searchesPerHour, time.Hour),
		detailLimiter: ratelimit.NewTokenBucket(detailPagesPerMinute, time.Minute),
		logger:        logger.MustGetLogger().WithField("component", "monitor"),
		rand:          r,
		now:           time.Now,
		sleepFn:       sleepFor,
	}
	o.newGestures = func(s browser.Session) gestures {
		return pacer.New(s, o.rand)
	}
	return o
}

// Start validates the configuration and launches the run in the
// background. The returned handle is the only way to observe or stop it.
func (o *Orchestrator) Start() (*RunHandle, error) {
	if len(o.cfg.Monitor.Keywords) == 0 {
		return nil, fmt.Errorf("no keywords configured")
	}

	window, err := timewindow.FromPreset(o.cfg.Window.Preset, o.cfg.Window.CustomDays, o.now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := newRunHandle(cancel)

	go o.run(ctx, handle, window)
	return handle, nil
}

func (o *Orchestrator) run(ctx context.Context, handle *RunHandle, window timewindow.Window) {
	result := &models.RunResult{
		RunID:    uuid.NewString(),
		Posts:    []models.Post{},
		Comments: []models.Comment{},
		Config: models.RunConfig{
			Keywords:           o.cfg.Monitor.Keywords,
			MaxPostsPerKeyword: o.cfg.Monitor.MaxPostsPerKeyword,
			MaxCommentsPerPost: o.cfg.Monitor.MaxCommentsPerPost,
			ExtractComments:    o.cfg.Monitor.ExtractComments,
			WindowPreset:       o.cfg.Window.Preset,
			CustomDays:         o.cfg.Window.CustomDays,
		},
		TimeRange: models.TimeRange{
			Start: window.Start.UnixMilli(),
			End:   window.End.UnixMilli(),
		},
		Stats: models.RunStats{
			PostsPerKeyword: make(map[string]int),
			StartedAt:       o.now(),
		},
	}

	handle.runID = result.RunID
	log := o.logger.WithField("run_id", result.RunID)
	o.setState(handle, StateIdle, StateInitializing)
	log.InfoWithFields("monitoring run started", map[string]interface{}{
		"keywords": len(o.cfg.Monitor.Keywords),
		"window":   o.cfg.Window.Preset,
	})

	var runErr error
	state := StateInitializing

	for i, keyword := range o.cfg.Monitor.Keywords {
		if ctx.Err() != nil {
			break
		}

		handle.emit(Event{Kind: EventKeywordStarted, Keyword: keyword, Time: o.now()})

		found, err := o.processKeyword(ctx, handle, &state, keyword, window, result)
		switch {
		case err == nil:
			result.Stats.KeywordsProcessed++
			handle.emit(Event{Kind: EventKeywordFinished, Keyword: keyword, Posts: found, Time: o.now()})
		case ctx.Err() != nil:
			// cancelled mid-keyword; terminal handling below
		case stderrors.Is(err, ErrBrowserUnavailable) || errs.IsFatal(errs.TypeOf(err)):
			runErr = err
		default:
			result.Stats.FailedKeywords = append(result.Stats.FailedKeywords, keyword)
			log.WarnWithFields("keyword skipped", map[string]interface{}{
				"keyword": keyword,
				"error":   err.Error(),
			})
			handle.emit(Event{Kind: EventKeywordSkipped, Keyword: keyword, Message: err.Error(), Time: o.now()})
		}

		if runErr != nil || ctx.Err() != nil {
			break
		}

		// Pause between keywords so searches do not fire back to back
		if i < len(o.cfg.Monitor.Keywords)-1 {
			delay := minKeywordDelay + time.Duration(o.rand.Int63n(int64(maxKeywordDelay-minKeywordDelay)))
			if err := o.sleepFn(ctx, delay); err != nil {
				break
			}
		}
	}

	result.Stats.FinishedAt = o.now()
	result.Stats.TotalPosts = len(result.Posts)
	result.Stats.TotalComments = len(result.Comments)

	terminal := StateCompleted
	switch {
	case runErr != nil:
		terminal = StateError
		result.Error = runErr.Error()
	case ctx.Err() != nil:
		terminal = StateStopped
	}
	result.Status = string(terminal)

	// Partial progress is flushed even on error or cancellation. A run
	// that collected nothing still persists an empty-but-valid result.
	o.setState(handle, state, StateSaving)
	if _, err := o.store.SaveResult(result); err != nil {
		if runErr == nil {
			runErr = err
		}
		terminal = StateError
		result.Status = string(terminal)
		result.Error = runErr.Error()
	}

	o.setState(handle, StateSaving, terminal)
	log.InfoWithFields("monitoring run finished", map[string]interface{}{
		"status":             result.Status,
		"keywords_processed": result.Stats.KeywordsProcessed,
		"posts":              result.Stats.TotalPosts,
		"comments":           result.Stats.TotalComments,
	})

	handle.finish(result, runErr)
}

// processKeyword runs the full pipeline for one keyword and returns the
// number of posts kept
func (o *Orchestrator) processKeyword(ctx context.Context, handle *RunHandle, state *State, keyword string, window timewindow.Window, result *models.RunResult) (int, error) {
	o.transition(handle, state, StateSelectingAccount, keyword)

	picked := o.scheduler.PickForTask(o.registry.List())
	if picked == nil {
		return 0, errs.New(errs.ErrorTypeNoEligibleAccount, "no eligible account available")
	}

	logger.LogAccountSelection(picked.ID, o.scheduler.Score(picked), false)
	handle.emit(Event{Kind: EventAccountSelected, Keyword: keyword, AccountID: picked.ID, Time: o.now()})

	if err := o.registry.RecordUse(picked.ID); err != nil {
		return 0, err
	}

	profile := o.profiles.Generate()
	var restored json.RawMessage
	if st, err := o.registry.Sessions().Load(picked.ID); err == nil && st != nil {
		restored = st.Payload
	}

	session, err := o.opener.Open(ctx, profile, restored)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	defer session.Close()

	g := o.newGestures(session)

	o.transition(handle, state, StateAuthenticating, keyword)
	if err := o.authenticate(ctx, handle, state, session, g, picked, keyword); err != nil {
		o.transition(handle, state, StateRecordingOutcome, keyword)
		if recErr := o.registry.RecordOutcome(picked.ID, false, err.Error()); recErr != nil {
			return 0, recErr
		}
		return 0, err
	}

	// Persist refreshed session state so the next run skips the login
	if payload, err := session.ExportState(ctx); err == nil {
		if err := o.registry.Sessions().Save(picked.ID, payload); err != nil {
			o.logger.WithError(err).Warn("failed to persist session state")
		}
	}

	o.transition(handle, state, StateSearching, keyword)
	if err := o.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if err := o.search(ctx, session, g, keyword); err != nil {
		o.transition(handle, state, StateRecordingOutcome, keyword)
		if recErr := o.registry.RecordOutcome(picked.ID, false, err.Error()); recErr != nil {
			return 0, recErr
		}
		return 0, err
	}

	o.transition(handle, state, StateExtracting, keyword)
	posts, err := o.extractPosts(ctx, session, keyword, window)
	if err != nil {
		o.transition(handle, state, StateRecordingOutcome, keyword)
		if recErr := o.registry.RecordOutcome(picked.ID, false, err.Error()); recErr != nil {
			return 0, recErr
		}
		return 0, err
	}

	var comments []models.Comment
	if o.cfg.Monitor.ExtractComments && len(posts) > 0 {
		o.transition(handle, state, StateExtractingSecondary, keyword)
		comments = o.extractComments(ctx, session, g, posts)
	}

	o.transition(handle, state, StateRecordingOutcome, keyword)
	if err := o.registry.RecordOutcome(picked.ID, true, ""); err != nil {
		return 0, err
	}

	result.Posts = append(result.Posts, posts...)
	result.Comments = append(result.Comments, comments...)
	result.Stats.PostsPerKeyword[keyword] = len(posts)
	result.Stats.AccountsUsed = appendUnique(result.Stats.AccountsUsed, picked.ID)

	logger.LogKeywordProgress(keyword, len(posts), o.cfg.Monitor.MaxPostsPerKeyword)
	return len(posts), nil
}

// authenticate ensures the session is logged in, restoring saved state
// when possible and falling back to scripted credential submission
func (o *Orchestrator) authenticate(ctx context.Context, handle *RunHandle, state *State, session browser.Session, g gestures, rec *account.Record, keyword string) error {
	if err := o.navigate(ctx, session, exploreURL); err != nil {
		return err
	}
	if err := g.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}

	if ok, _ := session.Exists(ctx, selLoggedIn); ok {
		o.logger.WithField("account_id", rec.ID).Debug("restored session still valid")
		return nil
	}

	secret, err := o.registry.DecryptSecret(rec.ID)
	if err != nil {
		return err
	}

	if err := o.navigate(ctx, session, loginURL); err != nil {
		return err
	}
	if err := g.Pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return err
	}

	if ok, _ := session.Exists(ctx, selLoginUser); !ok {
		return errs.New(errs.ErrorTypeAuthentication, "login form not found")
	}

	if err := g.Type(ctx, selLoginUser, rec.LoginIdentifier); err != nil {
		return errs.Wrap(errs.ErrorTypeAuthentication, "failed to enter login identifier", err)
	}
	if err := g.Type(ctx, selLoginPassword, secret); err != nil {
		return errs.Wrap(errs.ErrorTypeAuthentication, "failed to enter secret", err)
	}
	if err := g.Click(ctx, selLoginSubmit); err != nil {
		return errs.Wrap(errs.ErrorTypeAuthentication, "failed to submit login", err)
	}
	if err := g.Pause(ctx, 4*time.Second, 6*time.Second); err != nil {
		return err
	}

	if ok, _ := session.Exists(ctx, selChallenge); ok {
		logger.LogChallenge(rec.ID, "detected")
		handle.emit(Event{Kind: EventChallengeDetected, Keyword: keyword, AccountID: rec.ID, Time: o.now()})

		if err := o.waitForChallenge(ctx, handle, state, session, keyword); err != nil {
			return err
		}
		o.transition(handle, state, StateAuthenticating, keyword)
	}

	if ok, _ := session.Exists(ctx, selLoggedIn); !ok {
		return errs.New(errs.ErrorTypeAuthentication, "scripted login did not produce a logged-in session")
	}
	return nil
}

// waitForChallenge polls until the manual challenge clears or the
// bounded wait elapses
func (o *Orchestrator) waitForChallenge(ctx context.Context, handle *RunHandle, state *State, session browser.Session, keyword string) error {
	o.transition(handle, state, StateWaitingLogin, keyword)

	deadline := o.now().Add(o.cfg.Browser.ChallengeWait)
	for o.now().Before(deadline) {
		if err := o.sleepFn(ctx, challengePollInterval); err != nil {
			return err
		}
		if ok, _ := session.Exists(ctx, selChallenge); !ok {
			return nil
		}
	}

	return errs.New(errs.ErrorTypeChallengeTimeout, "manual challenge not resolved in time")
}

// search warms up on the explore feed, then reaches the result page
// through the search box, falling back to direct navigation
func (o *Orchestrator) search(ctx context.Context, session browser.Session, g gestures, keyword string) error {
	if err := o.navigate(ctx, session, exploreURL); err != nil {
		return err
	}
	if err := g.Pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return err
	}
	if err := g.Scroll(ctx, 200+o.rand.Intn(200)); err != nil {
		return err
	}

	typed := false
	if ok, _ := session.Exists(ctx, selSearchInput); ok {
		if err := g.Type(ctx, selSearchInput, keyword); err == nil {
			if err := session.SendKeys(ctx, selSearchInput, "\n"); err == nil {
				typed = true
			}
		}
	}
	if !typed {
		target := fmt.Sprintf(searchURLFormat, url.QueryEscape(keyword))
		if err := o.navigate(ctx, session, target); err != nil {
			return err
		}
	}
	if err := g.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}

	// Scroll a few screens so lazily loaded cards render
	if err := g.Scroll(ctx, 900+o.rand.Intn(900)); err != nil {
		return err
	}

	return nil
}

// extractPosts reads the result page and keeps cards inside the window.
// A page with no cards is an empty result, not an error.
func (o *Orchestrator) extractPosts(ctx context.Context, session browser.Session, keyword string, window timewindow.Window) ([]models.Post, error) {
	if err := session.WaitForSelector(ctx, selNoteItem, o.cfg.Browser.NavigationTimeout); err != nil {
		if ok, existsErr := session.Exists(ctx, selNoteItem); existsErr == nil && !ok {
			o.logger.WithField("keyword", keyword).Info("no results rendered for keyword")
			return nil, nil
		}
	}

	html, err := session.HTML(ctx, "html")
	if err != nil {
		return nil, err
	}

	posts, err := o.extractor.Posts(html, keyword, o.cfg.Monitor.MaxPostsPerKeyword, o.now())
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeExtraction, "failed to extract result cards", err)
	}

	kept := timewindow.Filter(posts, func(p models.Post) int64 { return p.Timestamp }, window, true)
	o.logger.DebugWithFields("posts extracted", map[string]interface{}{
		"keyword":  keyword,
		"found":    len(posts),
		"in_range": len(kept),
	})
	return kept, nil
}

// extractComments visits each post's detail page. Failures here are
// per-item: a bad page costs its own comments, never the keyword.
func (o *Orchestrator) extractComments(ctx context.Context, session browser.Session, g gestures, posts []models.Post) []models.Comment {
	var comments []models.Comment

	for _, post := range posts {
		if ctx.Err() != nil {
			break
		}

		// Each detail page draws from the per-minute budget
		if err := o.detailLimiter.Wait(ctx); err != nil {
			break
		}

		if err := o.navigate(ctx, session, post.URL); err != nil {
			o.logger.WithError(err).WithField("post_id", post.ID).Warn("skipping detail page")
			continue
		}
		if err := g.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
			break
		}

		if err := session.WaitForSelector(ctx, selCommentItem, o.cfg.Browser.NavigationTimeout); err != nil {
			o.logger.WithField("post_id", post.ID).Debug("no comments rendered")
			continue
		}

		html, err := session.HTML(ctx, "html")
		if err != nil {
			o.logger.WithError(err).WithField("post_id", post.ID).Warn("failed to read detail page")
			continue
		}

		extracted, err := o.extractor.Comments(html, post.ID, o.cfg.Monitor.MaxCommentsPerPost, o.now())
		if err != nil {
			o.logger.WithError(err).WithField("post_id", post.ID).Warn("failed to extract comments")
			continue
		}
		comments = append(comments, extracted...)
	}

	return comments
}

// navigate wraps page loads with retry; transient load failures are the
// most common page-level fault
func (o *Orchestrator) navigate(ctx context.Context, session browser.Session, target string) error {
	cfg := retry.DefaultConfig()
	cfg.Context = ctx
	cfg.Logger = o.logger

	return retry.Do(func() error {
		return session.Navigate(ctx, target)
	}, cfg)
}

func (o *Orchestrator) transition(handle *RunHandle, state *State, to State, keyword string) {
	from := *state
	*state = to
	handle.emit(Event{Kind: EventStateChanged, State: to, Keyword: keyword, Time: o.now()})
	logger.LogStateChange(handle.runID, string(from), string(to))
}

func (o *Orchestrator) setState(handle *RunHandle, from, to State) {
	handle.emit(Event{Kind: EventStateChanged, State: to, Time: o.now()})
	logger.LogStateChange(handle.runID, string(from), string(to))
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
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
