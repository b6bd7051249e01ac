package logger

import "fmt"

// LogStateChange logs an orchestrator state transition
func LogStateChange(runID, from, to string) {
	GetLogger().WithFields(map[string]interface{}{
		"run_id": runID,
		"from":   from,
		"to":     to,
	}).Info("State changed")
}

// LogAccountSelection logs which account a run picked and why
func LogAccountSelection(accountID string, score int, usedFallback bool) {
	fields := map[string]interface{}{
		"account_id": accountID,
		"score":      score,
	}

	if usedFallback {
		GetLogger().WithFields(fields).Warn("All accounts cooling down, using earliest expiry")
	} else {
		GetLogger().WithFields(fields).Info("Account selected")
	}
}

// LogAccountOutcome logs the result of a session against an account
func LogAccountOutcome(accountID string, success bool, err error) {
	logger := GetLogger().WithFields(map[string]interface{}{
		"account_id": accountID,
		"success":    success,
	})

	if err != nil {
		logger.WithError(err).Warn("Session outcome recorded with error")
	} else {
		logger.Info("Session outcome recorded")
	}
}

// LogKeywordProgress logs per-keyword collection progress
func LogKeywordProgress(keyword string, collected, limit int) {
	percentage := 0.0
	if limit > 0 {
		percentage = float64(collected) / float64(limit) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"keyword":    keyword,
		"collected":  collected,
		"limit":      limit,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Keyword progress")
}

// LogChallenge logs challenge detection and resolution events
func LogChallenge(accountID, event string) {
	GetLogger().WithFields(map[string]interface{}{
		"account_id": accountID,
		"event":      event,
	}).Warn("Verification challenge")
}
