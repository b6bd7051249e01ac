// Package timewindow canonicalizes the free-text timestamps found on post
// cards and filters collected items by a time window. Upstream text is
// uncontrolled, so parsing never fails: anything unrecognized canonicalizes
// to 0 and retention of such items is a policy decision.
package timewindow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"xhsmonitor/pkg/config"
)

// Parser resolves relative phrases against an injected clock and location
type Parser struct {
	// Now is swapped in tests for a fixed clock
	Now func() time.Time
	// Location is the timezone absolute dates are interpreted in
	Location *time.Location
}

// NewParser creates a parser using the local timezone and real clock
func NewParser() *Parser {
	return &Parser{
		Now:      time.Now,
		Location: time.Local,
	}
}

var (
	minutesAgoRe = regexp.MustCompile(`^(\d+)\s*分钟前$`)
	hoursAgoRe   = regexp.MustCompile(`^(\d+)\s*小时前$`)
	daysAgoRe    = regexp.MustCompile(`^(\d+)\s*天前$`)
)

// Absolute layouts tried in order. Bare month-day forms assume the
// current year.
var absoluteLayouts = []struct {
	layout      string
	currentYear bool
}{
	{"2006-01-02 15:04", false},
	{"2006/01/02 15:04", false},
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"01-02 15:04", true},
	{"01/02 15:04", true},
	{"01-02", true},
	{"01/02", true},
}

// ParseTimestamp converts raw display text to milliseconds since epoch.
// Returns 0 when the text is empty or unrecognized.
func (p *Parser) ParseTimestamp(raw string) int64 {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0
	}

	now := p.clock()

	if text == "刚刚" {
		return now.UnixMilli()
	}

	if m := minutesAgoRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Minute).UnixMilli()
	}
	if m := hoursAgoRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Hour).UnixMilli()
	}
	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n).UnixMilli()
	}

	if rest, ok := strings.CutPrefix(text, "昨天"); ok {
		return p.dayWithOptionalTime(now.AddDate(0, 0, -1), rest)
	}
	if rest, ok := strings.CutPrefix(text, "前天"); ok {
		return p.dayWithOptionalTime(now.AddDate(0, 0, -2), rest)
	}

	loc := p.location()
	for _, entry := range absoluteLayouts {
		parsed, err := time.ParseInLocation(entry.layout, text, loc)
		if err != nil {
			continue
		}
		if entry.currentYear {
			parsed = parsed.AddDate(now.Year(), 0, 0)
		}
		return parsed.UnixMilli()
	}

	return 0
}

// dayWithOptionalTime resolves "昨天"/"前天" with an optional trailing HH:MM
func (p *Parser) dayWithOptionalTime(day time.Time, rest string) int64 {
	rest = strings.TrimSpace(rest)
	loc := p.location()

	if rest != "" {
		if clock, err := time.ParseInLocation("15:04", rest, loc); err == nil {
			resolved := time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), 0, 0, loc)
			return resolved.UnixMilli()
		}
	}

	return day.UnixMilli()
}

func (p *Parser) clock() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Parser) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

// Window is the inclusive time range collected items must fall into
type Window struct {
	Start time.Time
	End   time.Time
}

// presetDays maps window preset names to their span
var presetDays = map[string]int{
	config.Window1Day:   1,
	config.Window3Days:  3,
	config.Window1Week:  7,
	config.Window2Weeks: 14,
	config.Window1Month: 30,
}

// FromPreset builds a window ending at now from a preset name. The custom
// preset takes its span from customDays.
func FromPreset(preset string, customDays int, now time.Time) (Window, error) {
	days, ok := presetDays[preset]
	if !ok {
		if preset != config.WindowCustom {
			return Window{}, fmt.Errorf("unknown window preset: %s", preset)
		}
		if customDays <= 0 {
			return Window{}, fmt.Errorf("custom window requires a positive day count")
		}
		days = customDays
	}

	return Window{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}, nil
}

// Contains reports whether a canonical millisecond timestamp falls inside
// the window
func (w Window) Contains(ms int64) bool {
	return ms >= w.Start.UnixMilli() && ms <= w.End.UnixMilli()
}

// Filter retains items whose canonical timestamp falls within the window.
// Items with timestamp 0 could not be dated; keepUnparseable treats them as
// possibly just posted and retains them. Filtering is idempotent.
func Filter[T any](items []T, timestamp func(T) int64, w Window, keepUnparseable bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		ms := timestamp(item)
		if ms == 0 {
			if keepUnparseable {
				out = append(out, item)
			}
			continue
		}
		if w.Contains(ms) {
			out = append(out, item)
		}
	}
	return out
}
