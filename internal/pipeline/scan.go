// Package pipeline wires one scan cycle: collect posts from each due
// influencer, deduplicate, score, and hand the survivors to the
// generation orchestrator.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"replypilot/internal/config"
	"replypilot/internal/generate"
	"replypilot/internal/ledger"
	"replypilot/internal/models"
	"replypilot/internal/scoring"
)

// PostSource is the external collector the scan consumes.
type PostSource interface {
	FetchRecentPosts(ctx context.Context, username string, count int) ([]models.Post, error)
}

// CollectionError wraps a per-influencer fetch failure. The cycle logs
// it and continues with the remaining influencers.
type CollectionError struct {
	Influencer string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection failed for @%s: %v", e.Influencer, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// fetchCount is how many posts to request per account; the age window
// trims the rest.
const fetchCount = 20

// Scan runs one full cycle.
type Scan struct {
	source       PostSource
	ledger       *ledger.Ledger
	orchestrator *generate.Orchestrator
	settings     *config.Settings
	logger       *zap.Logger
}

// NewScan assembles a scan cycle from its collaborators.
func NewScan(source PostSource, led *ledger.Ledger, orch *generate.Orchestrator, settings *config.Settings, logger *zap.Logger) *Scan {
	return &Scan{
		source:       source,
		ledger:       led,
		orchestrator: orch,
		settings:     settings,
		logger:       logger,
	}
}

// Result sums up one scan cycle for the operator.
type Result struct {
	InfluencersChecked int
	InfluencersFailed  int
	PostsSeen          int
	Candidates         int
	Generated          int
	GenerationFailed   int
}

// Run checks every due influencer, filters and scores its recent posts,
// and drives generation for the selected candidates. Per-influencer
// failures never abort the cycle.
func (s *Scan) Run(ctx context.Context, influencers []models.Influencer) (*Result, error) {
	now := time.Now().UTC()
	res := &Result{}

	var collected []models.Post
	for _, inf := range influencers {
		if !inf.Due(now) {
			s.logger.Debug("Influencer not due yet", zap.String("influencer", inf.Username))
			continue
		}
		res.InfluencersChecked++

		posts, err := s.collectOne(ctx, inf, now)
		if err != nil {
			res.InfluencersFailed++
			s.logger.Error("Skipping influencer for this cycle",
				zap.String("influencer", inf.Username),
				zap.String("stage", "collect"),
				zap.Error(err))
			continue
		}

		collected = append(collected, posts...)

		if err := config.UpdateLastChecked(s.settings.DerivedInfluencersPath(), inf.Username, now); err != nil {
			s.logger.Warn("Failed to stamp influencer last_checked",
				zap.String("influencer", inf.Username), zap.Error(err))
		}
	}

	res.PostsSeen = len(collected)

	weights := scoring.Weights{
		Like:   s.settings.Scoring.LikeWeight,
		Repost: s.settings.Scoring.RepostWeight,
		Reply:  s.settings.Scoring.ReplyWeight,
	}
	candidates := scoring.SelectCandidates(collected, weights,
		s.settings.Scoring.MinScore, s.settings.Scoring.ProtectCount, now)
	res.Candidates = len(candidates)

	s.logger.Info("Scan selection done",
		zap.Int("posts_seen", res.PostsSeen),
		zap.Int("candidates", res.Candidates))

	if len(candidates) == 0 {
		return res, nil
	}

	summary := s.orchestrator.Run(ctx, candidates)
	res.Generated = summary.Generated
	res.GenerationFailed = summary.Failed

	return res, nil
}

// collectOne fetches one influencer's recent posts and applies the age
// window, rule pre-filter and deduplication ledger.
func (s *Scan) collectOne(ctx context.Context, inf models.Influencer, now time.Time) ([]models.Post, error) {
	posts, err := s.source.FetchRecentPosts(ctx, inf.Username, fetchCount)
	if err != nil {
		return nil, &CollectionError{Influencer: inf.Username, Err: err}
	}

	maxAge := time.Duration(s.settings.Scan.MaxAgeMinutes) * time.Minute
	cutoff := now.Add(-maxAge)

	recent := posts[:0:0]
	for _, p := range posts {
		if p.CreatedAt.After(cutoff) {
			recent = append(recent, p)
		}
	}

	if s.settings.Scan.RuleFilter {
		recent = scoring.RuleFilter(recent, s.settings.Scan.MinTextWords)
	}

	fresh := make([]models.Post, 0, len(recent))
	for _, p := range recent {
		known, err := s.ledger.IsKnownPost(p.ID)
		if err != nil {
			return nil, err
		}
		if known {
			continue
		}

		attempts, err := s.ledger.FailureCount(p.ID)
		if err != nil {
			return nil, err
		}
		if attempts >= s.settings.Scan.MaxAttempts {
			s.logger.Warn("Dropping post after repeated generation failures",
				zap.String("post_id", p.ID),
				zap.Int("attempts", attempts))
			continue
		}

		recently, err := s.ledger.AuthorCommentedRecently(p.AuthorID, s.settings.DedupWindowDuration())
		if err != nil {
			return nil, err
		}
		if recently {
			s.logger.Debug("Author commented on recently, excluded",
				zap.String("influencer", inf.Username),
				zap.String("author_id", p.AuthorID))
			continue
		}

		fresh = append(fresh, p)
	}

	s.logger.Info("Influencer collected",
		zap.String("influencer", inf.Username),
		zap.Int("fetched", len(posts)),
		zap.Int("within_window", len(recent)),
		zap.Int("new", len(fresh)))

	return fresh, nil
}
