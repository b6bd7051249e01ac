// Package browser provides the automation surface the monitor drives.
// Session is the capability set one authenticated tab exposes; Opener
// hides how a session is launched so callers can run against a real
// Chrome instance or a test double.
package browser

import (
	"context"
	"encoding/json"
	"time"

	"xhsmonitor/pkg/fingerprint"
)

// Box is an element's position and size in page coordinates
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Session is one live browser tab carrying a fixed identity profile.
// All methods honor context cancellation.
type Session interface {
	// Navigate loads the given URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// WaitForSelector blocks until the selector matches a visible
	// element or the timeout elapses
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Exists reports whether the selector currently matches an element
	Exists(ctx context.Context, selector string) (bool, error)

	// HTML returns the outer HTML of the first match, or of the whole
	// document for selector "html"
	HTML(ctx context.Context, selector string) (string, error)

	// CurrentURL returns the tab's current location
	CurrentURL(ctx context.Context) (string, error)

	// Click dispatches a click on the first match of the selector
	Click(ctx context.Context, selector string) error

	// ClickAt clicks at page coordinates
	ClickAt(ctx context.Context, x, y float64) error

	// MouseMove moves the pointer to page coordinates without clicking
	MouseMove(ctx context.Context, x, y float64) error

	// Focus gives keyboard focus to the first match
	Focus(ctx context.Context, selector string) error

	// Clear empties the value of an input or textarea
	Clear(ctx context.Context, selector string) error

	// SendKeys types text into the focused element via key events
	SendKeys(ctx context.Context, selector, text string) error

	// ScrollBy scrolls the viewport vertically by the given pixels
	ScrollBy(ctx context.Context, pixels int) error

	// ElementBox returns the bounding box of the first match
	ElementBox(ctx context.Context, selector string) (Box, error)

	// ExportState captures the reusable session state (cookies) as an
	// opaque payload
	ExportState(ctx context.Context) (json.RawMessage, error)

	// ImportState restores a previously exported payload into the tab
	ImportState(ctx context.Context, state json.RawMessage) error

	// Close shuts the tab and its browser process down
	Close() error
}

// Opener launches sessions. The profile pins the session's identity and
// state, when non-nil, restores a prior login.
type Opener interface {
	Open(ctx context.Context, profile fingerprint.Profile, state json.RawMessage) (Session, error)
}

// sessionPayload is the wire shape of exported state
type sessionPayload struct {
	Cookies []sessionCookie `json:"cookies"`
}

// sessionCookie is a browser cookie in a form stable across exports
type sessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}
