// Package fingerprint generates per-session browser identities. Every value
// in a profile is drawn from the same pool entry so correlated attributes
// (user agent, client-hint headers, platform) never mix across browser
// families. A profile is fixed for the lifetime of its session; changing
// identity attributes mid-session is itself a detection signal.
package fingerprint

import (
	"fmt"
	"math/rand"
)

// Viewport is the window size reported to the page
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Profile is one coherent browser identity
type Profile struct {
	UserAgent           string            `json:"user_agent"`
	Headers             map[string]string `json:"headers"`
	Viewport            Viewport          `json:"viewport"`
	Locale              string            `json:"locale"`
	Timezone            string            `json:"timezone"`
	HardwareConcurrency int               `json:"hardware_concurrency"`
	DeviceMemory        int               `json:"device_memory"`
}

// browserEntry ties a user agent to the header set that must accompany it
type browserEntry struct {
	userAgent string
	secChUA   string // empty for families that do not send client hints
	platform  string
	accept    string
}

var browserPool = []browserEntry{
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		secChUA:   `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		platform:  `"Windows"`,
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		secChUA:   `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		platform:  `"Windows"`,
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		secChUA:   `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		platform:  `"macOS"`,
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		secChUA:   `"Not_A Brand";v="8", "Chromium";v="120", "Microsoft Edge";v="120"`,
		platform:  `"Windows"`,
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
		secChUA:   "", // Firefox sends no sec-ch-ua family headers
		platform:  "",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	},
}

// deviceEntry is a plausible hardware configuration
type deviceEntry struct {
	viewport    Viewport
	concurrency int
	memory      int
}

var devicePool = []deviceEntry{
	{Viewport{1920, 1080}, 8, 8},
	{Viewport{2560, 1440}, 16, 16},
	{Viewport{1536, 864}, 8, 8},
	{Viewport{1440, 900}, 8, 16},
	{Viewport{1366, 768}, 4, 8},
}

var localePool = []string{
	"zh-CN",
	"zh-CN,zh;q=0.9",
	"zh-CN,zh;q=0.9,en;q=0.8",
}

var timezonePool = []string{
	"Asia/Shanghai",
	"Asia/Chongqing",
	"Asia/Harbin",
	"Asia/Urumqi",
}

// Generator draws profiles from the pools. It is parameterized by a rand
// source so tests can be deterministic.
type Generator struct {
	rand *rand.Rand
}

// NewGenerator creates a generator with the given source
func NewGenerator(r *rand.Rand) *Generator {
	return &Generator{rand: r}
}

// Generate draws one coherent profile
func (g *Generator) Generate() Profile {
	browser := browserPool[g.rand.Intn(len(browserPool))]
	device := devicePool[g.rand.Intn(len(devicePool))]
	locale := localePool[g.rand.Intn(len(localePool))]
	timezone := timezonePool[g.rand.Intn(len(timezonePool))]

	headers := map[string]string{
		"Accept":          browser.accept,
		"Accept-Language": locale,
	}
	if browser.secChUA != "" {
		headers["sec-ch-ua"] = browser.secChUA
		headers["sec-ch-ua-mobile"] = "?0"
		headers["sec-ch-ua-platform"] = browser.platform
	}

	return Profile{
		UserAgent:           browser.userAgent,
		Headers:             headers,
		Viewport:            device.viewport,
		Locale:              locale,
		Timezone:            timezone,
		HardwareConcurrency: device.concurrency,
		DeviceMemory:        device.memory,
	}
}

// SpoofScript returns the init script that overrides automation-detectable
// navigator properties for this profile. It must be installed before the
// first navigation or it is a no-op.
func (p Profile) SpoofScript() string {
	languages := `['zh-CN', 'zh']`

	return fmt.Sprintf(`
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => %s });
Object.defineProperty(navigator, 'plugins', {
  get: () => [1, 2, 3, 4, 5].map(() => ({ length: 1 }))
});
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
  parameters.name === 'notifications'
    ? Promise.resolve({ state: Notification.permission })
    : originalQuery(parameters)
);
`, languages, p.HardwareConcurrency, p.DeviceMemory)
}
