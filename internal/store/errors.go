package store

import (
	"errors"
	"fmt"

	"replypilot/internal/models"
)

// ErrNotFound means no partition holds the comment id.
var ErrNotFound = errors.New("comment not found")

// TerminalStateError is returned when a transition is attempted out of
// rejected or published.
type TerminalStateError struct {
	CommentID string
	Status    models.Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("comment %s is in terminal status %q", e.CommentID, e.Status)
}

// InvalidTransitionError is returned when the comment exists but not in
// a partition the transition may start from.
type InvalidTransitionError struct {
	CommentID string
	From      models.Status
	To        models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("comment %s cannot move from %q to %q", e.CommentID, e.From, e.To)
}

// CorruptRecordError marks a comment file that exists but cannot be
// decoded. Fatal for that record only; the file is never auto-deleted.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt comment record %s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// PublishError is returned when the post source reports a publish
// failure. The comment keeps its prior status with the error attached.
type PublishError struct {
	CommentID string
	Reason    string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish comment %s: %s", e.CommentID, e.Reason)
}
