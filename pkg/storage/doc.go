// Package storage writes completed monitoring runs to disk. Each run
// produces one timestamped JSON result file and, when CSV export is
// enabled, flat post and comment exports under an exports subdirectory.
package storage
