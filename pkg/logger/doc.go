// Package logger is the monitor's structured logging layer over zerolog.
//
// Components take a Logger, tag it once with their identity, and log
// through the tagged handle:
//
//	log := logger.GetLogger().WithField("component", "monitor")
//	log.InfoWithFields("Keyword finished", map[string]interface{}{
//	    "keyword": "咖啡",
//	    "posts":   24,
//	})
//
// Package-level helpers cover the run's recurring events (state
// transitions, account selection, challenges, keyword progress) so
// their field sets stay consistent across call sites. Tests capture
// output with a Recorder instead of parsing log text.
//
// Initialize wires the global logger from config; until then GetLogger
// hands out a console logger at info level. With a file configured,
// console and file both receive every event.
package logger
