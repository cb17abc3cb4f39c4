package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replypilot/internal/models"
)

func makePost(id string, likes, reposts, replies int, age time.Duration, now time.Time) models.Post {
	return models.Post{
		ID:        id,
		AuthorID:  "author-" + id,
		Text:      "some reasonably long post text for filtering purposes",
		CreatedAt: now.Add(-age),
		Likes:     likes,
		Reposts:   reposts,
		Replies:   replies,
	}
}

func TestScore_HotPostHitsCap(t *testing.T) {
	now := time.Now()
	// weighted = 100 + 2*20 + 1.5*10 = 155, rate = 15.5, raw = 155 -> capped
	post := makePost("1", 100, 20, 10, 10*time.Minute, now)

	score, rate := Score(post, DefaultWeights, now)

	assert.Equal(t, 100.0, score)
	assert.InDelta(t, 15.5, rate, 0.01)
}

func TestScore_Bounds(t *testing.T) {
	now := time.Now()

	for _, post := range []models.Post{
		makePost("zero", 0, 0, 0, 5*time.Minute, now),
		makePost("huge", 1000000, 1000000, 1000000, time.Minute, now),
		makePost("old", 50, 5, 5, 48*time.Hour, now),
	} {
		score, _ := Score(post, DefaultWeights, now)
		assert.GreaterOrEqual(t, score, 0.0, post.ID)
		assert.LessOrEqual(t, score, 100.0, post.ID)
	}
}

func TestScore_YoungPostAgeClamped(t *testing.T) {
	now := time.Now()
	post := makePost("young", 10, 0, 0, 5*time.Second, now)

	_, rate := Score(post, DefaultWeights, now)

	// Age clamps to one minute, so rate equals the weighted total.
	assert.InDelta(t, 10.0, rate, 0.01)
}

func TestScore_MonotoneInEngagement(t *testing.T) {
	now := time.Now()
	base := makePost("base", 10, 5, 5, 30*time.Minute, now)
	baseScore, _ := Score(base, DefaultWeights, now)

	for name, bumped := range map[string]models.Post{
		"likes":   makePost("l", 11, 5, 5, 30*time.Minute, now),
		"reposts": makePost("r", 10, 6, 5, 30*time.Minute, now),
		"replies": makePost("p", 10, 5, 6, 30*time.Minute, now),
	} {
		score, _ := Score(bumped, DefaultWeights, now)
		assert.GreaterOrEqual(t, score, baseScore, name)
	}
}

func TestScore_MonotoneNonIncreasingInAge(t *testing.T) {
	now := time.Now()

	prev := 101.0
	for _, age := range []time.Duration{time.Minute, 10 * time.Minute, time.Hour, 6 * time.Hour} {
		score, _ := Score(makePost("a", 200, 20, 20, age, now), DefaultWeights, now)
		assert.LessOrEqual(t, score, prev, age.String())
		prev = score
	}
}

func TestSelectCandidates_AboveThreshold(t *testing.T) {
	now := time.Now()
	posts := []models.Post{
		makePost("hot", 500, 50, 50, 10*time.Minute, now),
		makePost("cold", 1, 0, 0, 25*time.Minute, now),
	}

	selected := SelectCandidates(posts, DefaultWeights, 60.0, 3, now)

	// The cold post backfills under the protection rule but orders last.
	require.Len(t, selected, 2)
	assert.Equal(t, "hot", selected[0].ID)
	assert.GreaterOrEqual(t, selected[0].Score, 60.0)
}

func TestSelectCandidates_ProtectionRule(t *testing.T) {
	now := time.Now()

	// Five posts all scoring 40: weighted 40 over 10 minutes.
	posts := make([]models.Post, 0, 5)
	for i := 0; i < 5; i++ {
		p := makePost(fmt.Sprintf("p%d", i), 40, 0, 0, 10*time.Minute, now)
		p.CreatedAt = now.Add(-10*time.Minute - time.Duration(i)*time.Second)
		posts = append(posts, p)
	}

	selected := SelectCandidates(posts, DefaultWeights, 60.0, 3, now)

	require.Len(t, selected, 3)
	for _, sp := range selected {
		assert.InDelta(t, 40.0, sp.Score, 0.01)
	}
	// Ties broken by recency: p0 is the newest.
	assert.Equal(t, "p0", selected[0].ID)
	assert.Equal(t, "p1", selected[1].ID)
	assert.Equal(t, "p2", selected[2].ID)
}

func TestSelectCandidates_NoBackfillWhenEnoughPass(t *testing.T) {
	now := time.Now()
	posts := []models.Post{
		makePost("a", 500, 50, 50, 10*time.Minute, now),
		makePost("b", 400, 40, 40, 10*time.Minute, now),
		makePost("c", 300, 30, 30, 10*time.Minute, now),
		makePost("low", 1, 0, 0, 25*time.Minute, now),
	}

	selected := SelectCandidates(posts, DefaultWeights, 60.0, 3, now)

	require.Len(t, selected, 3)
	for _, sp := range selected {
		assert.GreaterOrEqual(t, sp.Score, 60.0)
	}
}

func TestRuleFilter(t *testing.T) {
	posts := []models.Post{
		{ID: "short", Text: "nice"},
		{ID: "media-only", Text: "https://example.com/x", MediaCount: 2},
		{ID: "ok", Text: "this one has more than enough words to pass the filter"},
		{ID: "url-padding", Text: "wow https://example.com/a https://example.com/b https://example.com/c"},
	}

	kept := RuleFilter(posts, 5)

	require.Len(t, kept, 1)
	assert.Equal(t, "ok", kept[0].ID)
}

func TestRuleFilter_RepliesNeedQuotedContext(t *testing.T) {
	text := "this one has more than enough words to pass the filter"
	posts := []models.Post{
		{ID: "bare-reply", Text: text, IsReply: true},
		{ID: "quote-reply", Text: text, IsReply: true, HasQuote: true},
		{ID: "top-level", Text: text},
	}

	kept := RuleFilter(posts, 5)

	require.Len(t, kept, 2)
	assert.Equal(t, "quote-reply", kept[0].ID)
	assert.Equal(t, "top-level", kept[1].ID)
}

func TestStripURLs(t *testing.T) {
	assert.Equal(t, "check this", StripURLs("check this https://example.com/abc"))
	assert.Equal(t, "", StripURLs("https://example.com/only"))
}
