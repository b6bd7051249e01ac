// Package extract turns captured search-result and detail HTML into
// typed records. Page markup changes without notice, so extraction is
// lenient: a card missing a field still yields a record, and cards with
// no usable identity are skipped rather than failing the batch.
package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xhsmonitor/pkg/logger"
	"xhsmonitor/pkg/models"
	"xhsmonitor/pkg/timewindow"
)

const baseURL = "https://www.xiaohongshu.com"

// Extractor parses result pages. Display timestamps are canonicalized
// through the shared parser.
type Extractor struct {
	parser *timewindow.Parser
	logger logger.Logger
}

// New creates an extractor using the given timestamp parser
func New(parser *timewindow.Parser) *Extractor {
	return &Extractor{
		parser: parser,
		logger: logger.MustGetLogger().WithField("component", "extract"),
	}
}

// Posts extracts up to limit note cards from search-result HTML
func (e *Extractor) Posts(html, keyword string, limit int, collectedAt time.Time) ([]models.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse result page: %w", err)
	}

	var posts []models.Post
	doc.Find(".note-item").EachWithBreak(func(i int, card *goquery.Selection) bool {
		if limit > 0 && len(posts) >= limit {
			return false
		}

		href, _ := card.Find("a.cover").First().Attr("href")
		id := postIDFromHref(href)
		if id == "" {
			e.logger.DebugWithFields("skipping card without post ID", map[string]interface{}{
				"index":   i,
				"keyword": keyword,
			})
			return true
		}

		timeText := text(card.Find(".time").First())
		post := models.Post{
			ID:          id,
			Keyword:     keyword,
			Title:       text(card.Find(".title").First()),
			Author:      text(card.Find(".author").First()),
			URL:         absoluteURL(href),
			LikeCount:   ParseCount(text(card.Find(".like-count").First())),
			TimeText:    timeText,
			Timestamp:   e.parser.ParseTimestamp(timeText),
			CollectedAt: collectedAt,
		}

		card.Find(".tag").Each(func(_ int, tag *goquery.Selection) {
			if t := text(tag); t != "" {
				post.Tags = append(post.Tags, t)
			}
		})

		posts = append(posts, post)
		return true
	})

	return posts, nil
}

// Comments extracts up to limit comments from a post detail page
func (e *Extractor) Comments(html, postID string, limit int, collectedAt time.Time) ([]models.Comment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	var comments []models.Comment
	doc.Find(".comment-item").EachWithBreak(func(i int, item *goquery.Selection) bool {
		if limit > 0 && len(comments) >= limit {
			return false
		}

		content := text(item.Find(".content").First())
		author := text(item.Find(".username").First())
		if content == "" && author == "" {
			return true
		}

		timeText := text(item.Find(".time").First())
		comments = append(comments, models.Comment{
			ID:          commentID(postID, author, content, i),
			PostID:      postID,
			Author:      author,
			Content:     content,
			LikeCount:   ParseCount(text(item.Find(".like-count").First())),
			TimeText:    timeText,
			Timestamp:   e.parser.ParseTimestamp(timeText),
			CollectedAt: collectedAt,
		})
		return true
	})

	return comments, nil
}

var explorePathRe = regexp.MustCompile(`/explore/([0-9a-zA-Z]+)`)

// postIDFromHref pulls the note ID out of a card link, tolerating query
// strings and absolute URLs
func postIDFromHref(href string) string {
	if m := explorePathRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func absoluteURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return baseURL + href
}

// commentID derives a stable identity from the comment's content since
// the markup exposes none. The index disambiguates repeated comments.
func commentID(postID, author, content string, index int) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s|%d", postID, author, content, index)))
	return hex.EncodeToString(h[:8])
}

var countRe = regexp.MustCompile(`^([\d.,]+)\s*([万kK])?$`)

// ParseCount converts display counts like "1234", "1,234", "1.2万" or
// "3k" to integers. Unrecognized text counts as 0.
func ParseCount(raw string) int {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0
	}

	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}

	switch m[2] {
	case "万":
		value *= 10000
	case "k", "K":
		value *= 1000
	}

	return int(value)
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
