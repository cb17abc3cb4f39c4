package generate

import (
	"context"
	"fmt"
)

// Request carries everything the generation capability needs to draft or
// refine a reply to one post.
type Request struct {
	PostText     string
	AuthorHandle string
	Likes        int
	Reposts      int
	Replies      int
	Score        float64

	// StyleProfile is external configuration, opaque to the pipeline.
	StyleProfile string

	// ContinuationToken resumes a prior generation context for
	// refinement. Empty for a first draft.
	ContinuationToken string

	// RefineHint is optional operator guidance for a refinement pass.
	RefineHint string
}

// Result is a generated reply plus the token needed to refine it later.
type Result struct {
	Text              string
	ContinuationToken string
}

// Generator is the external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// TransientError marks a generation failure worth retrying in a later
// cycle (timeouts, rate limits, upstream 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient generation error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a generation failure that retrying will not fix
// (safety rejection, unparseable response after all retries).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent generation error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }
