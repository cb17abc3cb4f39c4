// Package review is the interactive approval loop over the pending
// partition: one comment at a time, one decision per comment, blocking
// on operator input.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"replypilot/internal/generate"
	"replypilot/internal/models"
	"replypilot/internal/store"
)

// Reviewer drives the loop.
type Reviewer struct {
	store        *store.Store
	generator    generate.Generator
	publisher    store.Publisher
	styleProfile string
	in           *bufio.Reader
	out          io.Writer
	logger       *zap.Logger
}

// New creates a reviewer reading decisions from in and writing prompts
// to out.
func New(st *store.Store, gen generate.Generator, pub store.Publisher, styleProfile string, in io.Reader, out io.Writer, logger *zap.Logger) *Reviewer {
	return &Reviewer{
		store:        st,
		generator:    gen,
		publisher:    pub,
		styleProfile: styleProfile,
		in:           bufio.NewReader(in),
		out:          out,
		logger:       logger,
	}
}

// Run walks the pending queue. Quit halts the remaining queue without
// error; every other decision advances to the next comment.
func (r *Reviewer) Run(ctx context.Context) error {
	pending, err := r.store.List(models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending comments: %w", err)
	}

	if len(pending) == 0 {
		fmt.Fprintln(r.out, "No pending comments.")
		return nil
	}

	fmt.Fprintf(r.out, "%d pending comment(s)\n", len(pending))

	for i := range pending {
		comment := pending[i]
		r.show(i+1, len(pending), comment)

		done := false
		for !done {
			fmt.Fprint(r.out, "[a]pprove  [r]eject  [p]ublish now  [f] refine  [s]kip  [q]uit > ")
			line, err := r.in.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("failed to read decision: %w", err)
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "a":
				if err := r.store.Approve(comment.ID); err != nil {
					fmt.Fprintf(r.out, "approve failed: %v\n", err)
				} else {
					fmt.Fprintln(r.out, "approved")
				}
				done = true
			case "r":
				if err := r.store.Reject(comment.ID); err != nil {
					fmt.Fprintf(r.out, "reject failed: %v\n", err)
				} else {
					fmt.Fprintln(r.out, "rejected")
				}
				done = true
			case "p":
				if err := r.store.Publish(ctx, comment.ID, r.publisher); err != nil {
					fmt.Fprintf(r.out, "publish failed: %v\n", err)
				} else {
					fmt.Fprintln(r.out, "published")
				}
				done = true
			case "f":
				refined, err := r.refine(ctx, comment)
				if err != nil {
					fmt.Fprintf(r.out, "refine failed: %v\n", err)
					break
				}
				comment = *refined
				r.show(i+1, len(pending), comment)
			case "s":
				done = true
			case "q":
				fmt.Fprintln(r.out, "stopping review")
				return nil
			default:
				fmt.Fprintln(r.out, "unknown action")
			}
		}
	}

	return nil
}

// refine asks the generation capability for a rewrite within the
// comment's prior context. Status stays untouched.
func (r *Reviewer) refine(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	if comment.SessionToken == "" {
		return nil, fmt.Errorf("comment %s has no continuation token", comment.ID)
	}

	fmt.Fprint(r.out, "guidance (empty for a general rewrite): ")
	hint, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}

	result, err := r.generator.Generate(ctx, generate.Request{
		PostText:          comment.PostText,
		AuthorHandle:      comment.AuthorHandle,
		Score:             comment.Score,
		StyleProfile:      r.styleProfile,
		ContinuationToken: comment.SessionToken,
		RefineHint:        strings.TrimSpace(hint),
	})
	if err != nil {
		return nil, err
	}

	if err := r.store.UpdateText(comment.ID, result.Text, result.ContinuationToken); err != nil {
		return nil, err
	}

	r.logger.Info("Comment refined", zap.String("comment_id", comment.ID))

	updated, _, err := r.store.Get(comment.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Reviewer) show(n, total int, c models.Comment) {
	fmt.Fprintf(r.out, "\n--- %d/%d ---------------------------------------\n", n, total)
	fmt.Fprintf(r.out, "@%s (score %.0f)\n%s\n", c.AuthorHandle, c.Score, c.PostText)
	if c.PostURL != "" {
		fmt.Fprintf(r.out, "%s\n", c.PostURL)
	}
	fmt.Fprintf(r.out, "\nreply draft:\n%s\n\n", c.Text)
	if c.LastError != "" {
		fmt.Fprintf(r.out, "last error: %s\n", c.LastError)
	}
}
