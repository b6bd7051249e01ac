package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	errs "xhsmonitor/pkg/errors"
	"xhsmonitor/pkg/logger"
	"xhsmonitor/pkg/models"
)

const (
	resultFilePattern     = "monitor_result_%s.json"
	postsExportPattern    = "export_posts_%s.csv"
	commentsExportPattern = "export_comments_%s.csv"
	exportSubdir          = "exports"
	timestampLayout       = "20060102_150405"
)

// Manager persists run results and optional CSV exports. Writes go
// through a temp file and rename so a crash never leaves a truncated
// result on disk.
type Manager struct {
	resultsDir string
	exportCSV  bool
	logger     logger.Logger
	mu         sync.Mutex

	// now is swapped in tests for deterministic filenames
	now func() time.Time
}

// NewManager creates a manager rooted at resultsDir
func NewManager(resultsDir string, exportCSV bool) (*Manager, error) {
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypePersistence, "failed to create results directory", err)
	}
	if exportCSV {
		if err := os.MkdirAll(filepath.Join(resultsDir, exportSubdir), 0755); err != nil {
			return nil, errs.Wrap(errs.ErrorTypePersistence, "failed to create exports directory", err)
		}
	}

	return &Manager{
		resultsDir: resultsDir,
		exportCSV:  exportCSV,
		logger:     logger.MustGetLogger().WithField("component", "storage"),
		now:        time.Now,
	}, nil
}

// SaveResult writes the run result to a timestamped JSON file and, when
// enabled, CSV exports alongside it. Returns the result file path.
// A result with no posts still produces a valid file.
func (m *Manager) SaveResult(result *models.RunResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp := m.now().Format(timestampLayout)
	path := filepath.Join(m.resultsDir, fmt.Sprintf(resultFilePattern, stamp))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypePersistence, "failed to encode run result", err)
	}
	if err := writeAtomic(path, data, 0644); err != nil {
		return "", errs.Wrap(errs.ErrorTypePersistence, "failed to write run result", err)
	}

	m.logger.InfoWithFields("run result saved", map[string]interface{}{
		"path":     path,
		"posts":    len(result.Posts),
		"comments": len(result.Comments),
	})

	if m.exportCSV {
		if err := m.exportPosts(result.Posts, stamp); err != nil {
			return "", err
		}
		if err := m.exportComments(result.Comments, stamp); err != nil {
			return "", err
		}
	}

	return path, nil
}

func (m *Manager) exportPosts(posts []models.Post, stamp string) error {
	rows := make([][]string, 0, len(posts)+1)
	rows = append(rows, []string{
		"id", "keyword", "title", "author", "url",
		"like_count", "time_text", "timestamp", "collected_at",
	})
	for _, p := range posts {
		rows = append(rows, []string{
			p.ID, p.Keyword, p.Title, p.Author, p.URL,
			strconv.Itoa(p.LikeCount), p.TimeText,
			strconv.FormatInt(p.Timestamp, 10),
			p.CollectedAt.Format(time.RFC3339),
		})
	}

	path := filepath.Join(m.resultsDir, exportSubdir, fmt.Sprintf(postsExportPattern, stamp))
	return m.writeCSV(path, rows)
}

func (m *Manager) exportComments(comments []models.Comment, stamp string) error {
	rows := make([][]string, 0, len(comments)+1)
	rows = append(rows, []string{
		"id", "post_id", "author", "content",
		"like_count", "time_text", "timestamp", "collected_at",
	})
	for _, c := range comments {
		rows = append(rows, []string{
			c.ID, c.PostID, c.Author, c.Content,
			strconv.Itoa(c.LikeCount), c.TimeText,
			strconv.FormatInt(c.Timestamp, 10),
			c.CollectedAt.Format(time.RFC3339),
		})
	}

	path := filepath.Join(m.resultsDir, exportSubdir, fmt.Sprintf(commentsExportPattern, stamp))
	return m.writeCSV(path, rows)
}

func (m *Manager) writeCSV(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.ErrorTypePersistence, "failed to create export file", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypePersistence, "failed to write export rows", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypePersistence, "failed to finish export file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypePersistence, "failed to move export into place", err)
	}

	m.logger.DebugWithFields("export written", map[string]interface{}{
		"path": path,
		"rows": len(rows) - 1,
	})
	return nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
