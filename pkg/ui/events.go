package ui

import (
	"fmt"

	"xhsmonitor/pkg/monitor"
)

// RenderEvents consumes a run's event stream and prints a line per
// notable event. Blocks until the stream closes.
func RenderEvents(events <-chan monitor.Event) {
	for ev := range events {
		switch ev.Kind {
		case monitor.EventKeywordStarted:
			PrintInfo("Keyword", ev.Keyword)
		case monitor.EventAccountSelected:
			if !quiet {
				fmt.Printf("  %s %s\n", Dim("account"), Dim(ev.AccountID))
			}
		case monitor.EventStateChanged:
			if ev.State == monitor.StateWaitingLogin {
				PrintWarning("Waiting for manual challenge resolution")
			}
		case monitor.EventChallengeDetected:
			PrintWarning("Verification challenge detected", ev.AccountID)
		case monitor.EventKeywordFinished:
			PrintSuccess(fmt.Sprintf("  collected %d posts", ev.Posts))
		case monitor.EventKeywordSkipped:
			PrintWarning("  keyword skipped", ev.Message)
		case monitor.EventWarning:
			PrintWarning(ev.Message)
		}
	}
}
