// Package models holds the data types shared across the monitor:
// collected posts and comments, run statistics and the persisted result.
package models

import "time"

// Post is a single note card collected from search results
type Post struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	LikeCount   int       `json:"like_count"`
	TimeText    string    `json:"time_text"`
	Timestamp   int64     `json:"timestamp"` // milliseconds since epoch, 0 when unparseable
	Tags        []string  `json:"tags,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// Comment is a single comment collected from a post detail page
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	LikeCount   int       `json:"like_count"`
	TimeText    string    `json:"time_text"`
	Timestamp   int64     `json:"timestamp"`
	CollectedAt time.Time `json:"collected_at"`
}

// RunConfig is the snapshot of monitoring settings persisted with each result
type RunConfig struct {
	Keywords           []string `json:"keywords"`
	MaxPostsPerKeyword int      `json:"max_posts_per_keyword"`
	MaxCommentsPerPost int      `json:"max_comments_per_post"`
	ExtractComments    bool     `json:"extract_comments"`
	WindowPreset       string   `json:"window_preset"`
	CustomDays         int      `json:"custom_days,omitempty"`
}

// TimeRange is the window posts had to fall into, in epoch milliseconds
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// RunStats summarizes what a monitoring run collected
type RunStats struct {
	KeywordsProcessed int            `json:"keywords_processed"`
	TotalPosts        int            `json:"total_posts"`
	TotalComments     int            `json:"total_comments"`
	PostsPerKeyword   map[string]int `json:"posts_per_keyword"`
	FailedKeywords    []string       `json:"failed_keywords,omitempty"`
	AccountsUsed      []string       `json:"accounts_used,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// RunResult is the full output of one monitoring run. An empty Posts slice
// with a terminal status is a valid result: finding nothing in the window
// is not an error.
type RunResult struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"` // completed, stopped or error
	Error     string    `json:"error,omitempty"`
	Posts     []Post    `json:"posts"`
	Comments  []Comment `json:"comments"`
	Stats     RunStats  `json:"stats"`
	Config    RunConfig `json:"config"`
	TimeRange TimeRange `json:"time_range"`
}
