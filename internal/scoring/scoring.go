// Package scoring ranks posts by engagement velocity. Everything here is
// a pure function over its inputs.
package scoring

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"replypilot/internal/models"
)

// Weights are the engagement counter weights used by Score.
type Weights struct {
	Like   float64
	Repost float64
	Reply  float64
}

// DefaultWeights match the tuned production values.
var DefaultWeights = Weights{Like: 1.0, Repost: 2.0, Reply: 1.5}

const (
	// rateDivisor normalizes the per-minute engagement rate: a rate of
	// 5 weighted engagements per minute maps to a score of 50.
	rateDivisor = 5.0
	scoreScale  = 50.0
	maxScore    = 100.0
)

// Score computes the 0-100 trending score of a post at the given time,
// together with the per-minute engagement rate it was derived from.
func Score(post models.Post, w Weights, now time.Time) (score, rate float64) {
	weighted := float64(post.Likes)*w.Like +
		float64(post.Reposts)*w.Repost +
		float64(post.Replies)*w.Reply

	rate = weighted / post.AgeMinutes(now)

	score = (rate / rateDivisor) * scoreScale
	if score > maxScore {
		score = maxScore
	}
	return score, rate
}

// ScoreAll scores every post and returns them ordered by descending
// score, ties broken by the more recent post first.
func ScoreAll(posts []models.Post, w Weights, now time.Time) []models.ScoredPost {
	scored := make([]models.ScoredPost, 0, len(posts))
	for _, p := range posts {
		s, r := Score(p, w, now)
		scored = append(scored, models.ScoredPost{Post: p, Score: s, EngagementRate: r})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})

	return scored
}

// SelectCandidates applies the minimum-score filter with the protect-top-N
// override: if fewer than protectCount posts clear minScore, the highest
// scoring remainder backfills up to protectCount, so a quiet day never
// starves the pipeline entirely.
func SelectCandidates(posts []models.Post, w Weights, minScore float64, protectCount int, now time.Time) []models.ScoredPost {
	scored := ScoreAll(posts, w, now)

	candidates := make([]models.ScoredPost, 0, len(scored))
	for _, sp := range scored {
		if sp.Score >= minScore {
			candidates = append(candidates, sp)
		}
	}

	if len(candidates) < protectCount {
		for _, sp := range scored {
			if len(candidates) >= protectCount {
				break
			}
			if sp.Score < minScore {
				candidates = append(candidates, sp)
			}
		}
	}

	return candidates
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// StripURLs removes links from post text before length checks.
func StripURLs(text string) string {
	return strings.TrimSpace(urlPattern.ReplaceAllString(text, ""))
}

// RuleFilter is the quick pre-filter applied before scoring: posts whose
// URL-stripped text is shorter than minWords words, that are media with
// no real text, or that reply into a thread without quoting what they
// answer, are dropped as poor comment targets.
func RuleFilter(posts []models.Post, minWords int) []models.Post {
	kept := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.IsReply && !p.HasQuote {
			continue
		}
		clean := StripURLs(p.Text)
		if p.MediaCount > 0 && len(clean) < 10 {
			continue
		}
		if len(strings.Fields(clean)) < minWords {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
