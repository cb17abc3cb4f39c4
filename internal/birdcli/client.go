// Package birdcli adapts the external bird CLI as the post source. The
// CLI owns the platform session and all protocol details; this package
// only shells out and parses JSON.
package birdcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"replypilot/internal/models"
)

// birdTimeLayout is the createdAt format the CLI emits.
const birdTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Client invokes the bird binary.
type Client struct {
	binary string
	logger *zap.Logger
}

// New creates a client around the given binary name or path.
func New(binary string, logger *zap.Logger) *Client {
	if binary == "" {
		binary = "bird"
	}
	return &Client{binary: binary, logger: logger}
}

// birdPost mirrors the CLI's tweet JSON.
type birdPost struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Author   struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"author"`
	Text         string            `json:"text"`
	CreatedAt    string            `json:"createdAt"`
	LikeCount    int               `json:"likeCount"`
	RetweetCount int               `json:"retweetCount"`
	ReplyCount   int               `json:"replyCount"`
	InReplyTo    string            `json:"inReplyToStatusId"`
	QuotedID     string            `json:"quotedStatusId"`
	Media        []json.RawMessage `json:"media"`
}

// CheckAuth asks the CLI whether its platform session is still valid.
func (c *Client) CheckAuth(ctx context.Context) error {
	out, err := c.run(ctx, "auth", "status")
	if err != nil {
		return fmt.Errorf("bird session invalid: %w", err)
	}
	c.logger.Debug("bird auth status", zap.ByteString("output", bytes.TrimSpace(out)))
	return nil
}

// FetchRecentPosts returns the latest posts of one account, newest
// first as the CLI emits them.
func (c *Client) FetchRecentPosts(ctx context.Context, username string, count int) ([]models.Post, error) {
	out, err := c.run(ctx, "user-tweets", username, "--count", strconv.Itoa(count), "--json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for @%s: %w", username, err)
	}

	var raw []birdPost
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bird output for @%s: %w", username, err)
	}

	posts := make([]models.Post, 0, len(raw))
	for _, bp := range raw {
		createdAt, err := time.Parse(birdTimeLayout, bp.CreatedAt)
		if err != nil {
			c.logger.Warn("Skipping post with unparseable timestamp",
				zap.String("post_id", bp.ID),
				zap.String("created_at", bp.CreatedAt))
			continue
		}

		posts = append(posts, models.Post{
			ID:           bp.ID,
			AuthorID:     bp.AuthorID,
			AuthorHandle: bp.Author.Username,
			AuthorName:   bp.Author.Name,
			Text:         bp.Text,
			CreatedAt:    createdAt,
			Likes:        bp.LikeCount,
			Reposts:      bp.RetweetCount,
			Replies:      bp.ReplyCount,
			URL:          fmt.Sprintf("https://x.com/%s/status/%s", bp.Author.Username, bp.ID),
			MediaCount:   len(bp.Media),
			IsReply:      bp.InReplyTo != "",
			HasQuote:     bp.QuotedID != "",
		})
	}

	return posts, nil
}

// Publish posts a reply through the CLI. A non-zero exit is reported as
// an unsuccessful result, never swallowed.
func (c *Client) Publish(ctx context.Context, comment models.Comment) (models.PublishResult, error) {
	out, err := c.run(ctx, "reply", comment.PostID, "--text", comment.Text, "--json")
	if err != nil {
		return models.PublishResult{Success: false, Error: err.Error()}, nil
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return models.PublishResult{}, fmt.Errorf("failed to parse bird reply output: %w", err)
	}

	return models.PublishResult{Success: true, RemoteID: resp.ID}, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s: %s", err, msg)
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}
