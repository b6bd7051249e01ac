package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"xhsmonitor/pkg/config"
)

// bufferLogger builds a zerolog-backed Logger that writes JSON to buf
func bufferLogger(buf *bytes.Buffer) Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &zerologLogger{zl: zerolog.New(buf)}
}

// swapLogger routes the global logger (and the package helpers) to l
// for the duration of the test
func swapLogger(t *testing.T, l Logger) {
	t.Helper()
	prev := globalLogger
	globalLogger = l
	t.Cleanup(func() { globalLogger = prev })
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	if _, err := New(&config.LoggingConfig{Level: "info"}); err != nil {
		t.Fatalf("valid level rejected: %v", err)
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")

	if _, err := New(&config.LoggingConfig{Level: "debug", File: path}); err != nil {
		t.Fatalf("failed to build file logger: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	for name, want := range map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	} {
		got, err := parseLogLevel(name)
		if err != nil {
			t.Errorf("parseLogLevel(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := parseLogLevel("verbose"); err == nil {
		t.Error("expected an error for an unknown level name")
	}
}

func TestBoundFieldsSurviveDerivation(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	log.WithField("component", "monitor").
		WithField("run_id", "run-7").
		InfoWithFields("Keyword finished", map[string]interface{}{
			"keyword": "咖啡",
			"posts":   3,
		})

	out := buf.String()
	for _, want := range []string{
		`"component":"monitor"`,
		`"run_id":"run-7"`,
		`"keyword":"咖啡"`,
		`"posts":3`,
		"Keyword finished",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestDerivedLoggerDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	tagged := log.WithField("account_id", "acct-1")
	tagged.Debug("session opened")

	buf.Reset()
	log.Info("run finished")

	if strings.Contains(buf.String(), "acct-1") {
		t.Errorf("parent logger picked up the derived field:\n%s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	if log.WithError(nil) != log {
		t.Error("WithError(nil) should return the receiver unchanged")
	}

	log.WithError(errors.New("selector never appeared")).Warn("skipping detail page")
	if !strings.Contains(buf.String(), "selector never appeared") {
		t.Errorf("error text missing from output:\n%s", buf.String())
	}
}

func TestRecorderCapturesLevelsAndFields(t *testing.T) {
	rec := NewRecorder()

	rec.WithField("component", "browser").Debug("session opened")
	rec.WarnWithFields("keyword skipped", map[string]interface{}{"keyword": "奶茶"})
	rec.WithError(errors.New("timeout")).Error("navigation failed")

	if got := len(rec.Entries()); got != 3 {
		t.Fatalf("captured %d entries, want 3", got)
	}
	if got := len(rec.ByLevel("warn")); got != 1 {
		t.Fatalf("captured %d warn entries, want 1", got)
	}

	entry, ok := rec.Find("keyword skipped")
	if !ok {
		t.Fatal("warn entry not found by message")
	}
	if entry.Fields["keyword"] != "奶茶" {
		t.Errorf("keyword field = %v, want 奶茶", entry.Fields["keyword"])
	}

	entry, _ = rec.Find("navigation failed")
	if entry.Fields["error"] != "timeout" {
		t.Errorf("error field = %v, want timeout", entry.Fields["error"])
	}

	rec.Reset()
	if len(rec.Entries()) != 0 {
		t.Error("Reset left entries behind")
	}
}

func TestLogStateChange(t *testing.T) {
	rec := NewRecorder()
	swapLogger(t, rec)

	LogStateChange("run-1", "SEARCHING", "EXTRACTING")

	entry, ok := rec.Find("State changed")
	if !ok {
		t.Fatal("state change was not logged")
	}
	if entry.Fields["run_id"] != "run-1" || entry.Fields["from"] != "SEARCHING" || entry.Fields["to"] != "EXTRACTING" {
		t.Errorf("unexpected transition fields: %v", entry.Fields)
	}
}

func TestLogAccountSelection(t *testing.T) {
	rec := NewRecorder()
	swapLogger(t, rec)

	LogAccountSelection("acct-1", 30, false)
	if got := len(rec.ByLevel("info")); got != 1 {
		t.Fatalf("normal selection logged %d info entries, want 1", got)
	}

	rec.Reset()
	LogAccountSelection("acct-2", 160, true)
	warns := rec.ByLevel("warn")
	if len(warns) != 1 {
		t.Fatalf("fallback selection logged %d warn entries, want 1", len(warns))
	}
	if warns[0].Fields["score"] != 160 {
		t.Errorf("score field = %v, want 160", warns[0].Fields["score"])
	}
}

func TestLogKeywordProgress(t *testing.T) {
	rec := NewRecorder()
	swapLogger(t, rec)

	LogKeywordProgress("咖啡", 5, 20)

	entry, ok := rec.Find("Keyword progress")
	if !ok {
		t.Fatal("progress was not logged")
	}
	if entry.Fields["percentage"] != "25.0%" {
		t.Errorf("percentage = %v, want 25.0%%", entry.Fields["percentage"])
	}
}

func TestLogChallengeWarns(t *testing.T) {
	rec := NewRecorder()
	swapLogger(t, rec)

	LogChallenge("acct-1", "detected")

	warns := rec.ByLevel("warn")
	if len(warns) != 1 {
		t.Fatalf("challenge logged %d warn entries, want 1", len(warns))
	}
	if warns[0].Fields["event"] != "detected" {
		t.Errorf("event field = %v, want detected", warns[0].Fields["event"])
	}
}

func TestLogAccountOutcome(t *testing.T) {
	rec := NewRecorder()
	swapLogger(t, rec)

	LogAccountOutcome("acct-1", true, nil)
	if _, ok := rec.Find("Session outcome recorded"); !ok {
		t.Fatal("successful outcome was not logged")
	}

	rec.Reset()
	LogAccountOutcome("acct-1", false, errors.New("login failed"))
	entry, ok := rec.Find("Session outcome recorded with error")
	if !ok {
		t.Fatal("failed outcome was not logged")
	}
	if entry.Fields["success"] != false {
		t.Errorf("success field = %v, want false", entry.Fields["success"])
	}
}
