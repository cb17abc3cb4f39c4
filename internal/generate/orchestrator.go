package generate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"replypilot/internal/models"
)

// CommentStore is the slice of the lifecycle store the orchestrator
// writes to.
type CommentStore interface {
	SavePending(comment models.Comment) error
}

// DedupLedger is the slice of the ledger the orchestrator updates. A
// post is marked processed only after its comment is durably persisted.
type DedupLedger interface {
	MarkProcessed(postID string) error
	RecordAuthorComment(authorID string, at time.Time) error
	RecordFailure(postID string) error
}

// Options tune one orchestration cycle.
type Options struct {
	MaxPerCycle   int
	MaxConcurrent int
	SlotDelay     time.Duration
	CallTimeout   time.Duration
	StyleProfile  string
}

// Summary reports what one cycle did.
type Summary struct {
	Requested int
	Generated int
	Failed    int
}

// Orchestrator drives comment generation for the qualifying posts of a
// scan cycle under a bounded concurrency limit.
type Orchestrator struct {
	generator Generator
	store     CommentStore
	ledger    DedupLedger
	opts      Options
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(generator Generator, store CommentStore, ledger DedupLedger, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.MaxPerCycle == 0 {
		opts.MaxPerCycle = 10
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 3
	}
	if opts.SlotDelay == 0 {
		opts.SlotDelay = 2 * time.Second
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 30 * time.Second
	}

	return &Orchestrator{
		generator: generator,
		store:     store,
		ledger:    ledger,
		opts:      opts,
		logger:    logger,
	}
}

// Run generates one pending comment per qualifying post. Posts are
// assumed deduplicated and ordered; the cycle cap is applied here. A
// failed post is logged, counted and left unmarked so a future cycle can
// retry it; it never aborts the batch.
func (o *Orchestrator) Run(ctx context.Context, posts []models.ScoredPost) Summary {
	if len(posts) > o.opts.MaxPerCycle {
		o.logger.Info("Capping generation cycle",
			zap.Int("qualifying", len(posts)),
			zap.Int("max_per_cycle", o.opts.MaxPerCycle))
		posts = posts[:o.opts.MaxPerCycle]
	}

	var (
		mu      sync.Mutex
		summary = Summary{Requested: len(posts)}
	)

	jobs := make(chan models.ScoredPost)

	g, ctx := errgroup.WithContext(ctx)
	for slot := 0; slot < o.opts.MaxConcurrent; slot++ {
		g.Go(func() error {
			first := true
			for post := range jobs {
				// Each slot paces its own calls to respect
				// upstream rate limits.
				if !first {
					select {
					case <-time.After(o.opts.SlotDelay):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				first = false

				ok := o.generateOne(ctx, post)
				mu.Lock()
				if ok {
					summary.Generated++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	for _, post := range posts {
		select {
		case jobs <- post:
		case <-ctx.Done():
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		o.logger.Warn("Generation cycle interrupted", zap.Error(err))
	}

	o.logger.Info("Generation cycle completed",
		zap.Int("requested", summary.Requested),
		zap.Int("generated", summary.Generated),
		zap.Int("failed", summary.Failed))

	return summary
}

// generateOne drafts a comment for a single post. Returns false on any
// failure; the post stays eligible for a future cycle.
func (o *Orchestrator) generateOne(ctx context.Context, post models.ScoredPost) bool {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	result, err := o.generator.Generate(callCtx, Request{
		PostText:     post.Text,
		AuthorHandle: post.AuthorHandle,
		Likes:        post.Likes,
		Reposts:      post.Reposts,
		Replies:      post.Replies,
		Score:        post.Score,
		StyleProfile: o.opts.StyleProfile,
	})
	if err != nil {
		// The transient/permanent distinction only matters to the
		// operator reading the logs; both skip this cycle.
		var transient *TransientError
		kind := "permanent"
		if errors.As(err, &transient) || errors.Is(err, context.DeadlineExceeded) {
			kind = "transient"
		}
		o.logger.Error("Generation failed, post stays eligible",
			zap.String("post_id", post.ID),
			zap.String("influencer", post.AuthorHandle),
			zap.String("kind", kind),
			zap.Error(err))
		if lerr := o.ledger.RecordFailure(post.ID); lerr != nil {
			o.logger.Error("Failed to record generation failure",
				zap.String("post_id", post.ID), zap.Error(lerr))
		}
		return false
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:           models.CommentID(post.ID),
		PostID:       post.ID,
		AuthorID:     post.AuthorID,
		AuthorHandle: post.AuthorHandle,
		PostText:     post.Text,
		PostURL:      post.URL,
		Score:        post.Score,
		Text:         result.Text,
		Status:       models.StatusPending,
		SessionToken: result.ContinuationToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := o.store.SavePending(comment); err != nil {
		o.logger.Error("Failed to persist comment, post stays eligible",
			zap.String("post_id", post.ID),
			zap.String("comment_id", comment.ID),
			zap.Error(err))
		return false
	}

	// Ledger marking is sequenced after persistence so a crash in
	// between loses nothing: the post is simply re-generated next cycle
	// under the same comment id.
	if err := o.ledger.MarkProcessed(post.ID); err != nil {
		o.logger.Error("Failed to mark post processed",
			zap.String("post_id", post.ID), zap.Error(err))
	}
	if err := o.ledger.RecordAuthorComment(post.AuthorID, now); err != nil {
		o.logger.Error("Failed to record author comment",
			zap.String("author_id", post.AuthorID), zap.Error(err))
	}

	o.logger.Info("Comment drafted",
		zap.String("post_id", post.ID),
		zap.String("comment_id", comment.ID),
		zap.String("influencer", post.AuthorHandle),
		zap.Float64("score", post.Score))

	return true
}
