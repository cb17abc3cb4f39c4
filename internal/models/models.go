package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a generated comment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

// AllStatuses lists every partition the store maintains.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusPublished}

// IsTerminal reports whether no transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusPublished
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// Priority is the polling tier of an influencer.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Post is a social media post as returned by the post source.
// Immutable once fetched.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	AuthorName   string    `json:"author_name,omitempty"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Likes        int       `json:"likes"`
	Reposts      int       `json:"reposts"`
	Replies      int       `json:"replies"`
	URL          string    `json:"url,omitempty"`
	MediaCount   int       `json:"media_count,omitempty"`
	IsReply      bool      `json:"is_reply,omitempty"`
	HasQuote     bool      `json:"has_quote,omitempty"`
}

// AgeMinutes returns the post age at now, clamped to a minimum of one
// minute so the engagement rate never divides by a near-zero age.
func (p Post) AgeMinutes(now time.Time) float64 {
	age := now.Sub(p.CreatedAt).Minutes()
	if age < 1 {
		return 1
	}
	return age
}

// ScoredPost is a post annotated with its trending score for one scan
// cycle. Not persisted beyond the cycle.
type ScoredPost struct {
	Post
	Score          float64 `json:"score"`
	EngagementRate float64 `json:"engagement_rate"`
}

// Influencer is one monitored account from the human-edited config.
type Influencer struct {
	Username      string     `json:"username" yaml:"username"`
	AccountID     int64      `json:"account_id,omitempty" yaml:"account_id"`
	Priority      Priority   `json:"priority" yaml:"priority"`
	CheckInterval int        `json:"check_interval" yaml:"check_interval"` // minutes
	Topics        []string   `json:"topics,omitempty" yaml:"topics"`
	Notes         string     `json:"notes,omitempty" yaml:"notes"`
	AddedAt       *time.Time `json:"added_at,omitempty" yaml:"-"`
	LastChecked   *time.Time `json:"last_checked,omitempty" yaml:"-"`
}

// Due reports whether the influencer's check interval has elapsed since
// it was last polled.
func (i Influencer) Due(now time.Time) bool {
	if i.LastChecked == nil {
		return true
	}
	return now.Sub(*i.LastChecked) >= time.Duration(i.CheckInterval)*time.Minute
}

// Comment is a generated reply draft moving through the approval
// lifecycle. Identity is immutable; only text, status and timestamps
// mutate.
type Comment struct {
	ID           string     `json:"id"`
	PostID       string     `json:"post_id"`
	AuthorID     string     `json:"author_id"`
	AuthorHandle string     `json:"author_handle,omitempty"`
	PostText     string     `json:"post_text,omitempty"`
	PostURL      string     `json:"post_url,omitempty"`
	Score        float64    `json:"score,omitempty"`
	Text         string     `json:"text"`
	Status       Status     `json:"status"`
	SessionToken string     `json:"session_token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	RemoteID     string     `json:"remote_id,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// commentNamespace seeds deterministic comment ids. Regenerating a
// comment for the same post always yields the same id, so retries
// overwrite instead of duplicating.
var commentNamespace = uuid.MustParse("8a9e6744-2f44-46e8-9e6f-5d7b3a1c0e42")

// CommentID derives the stable comment identifier for a source post.
func CommentID(postID string) string {
	return uuid.NewSHA1(commentNamespace, []byte(postID)).String()
}

// PublishResult is what the post source reports after attempting to
// publish an approved comment.
type PublishResult struct {
	Success  bool   `json:"success"`
	RemoteID string `json:"remote_id,omitempty"`
	Error    string `json:"error,omitempty"`
}
