// Package store persists comment records as one JSON file per comment,
// partitioned into a directory per lifecycle status. A status transition
// is a physical relocation between partitions: write to the target,
// verify it is readable, then remove from the source. Interrupting a
// transition between those steps leaves the record visible in at least
// one partition, and repeating a completed transition is a no-op.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"replypilot/internal/models"
)

// Publisher is the external collaborator that actually posts a reply.
type Publisher interface {
	Publish(ctx context.Context, comment models.Comment) (models.PublishResult, error)
}

// Store is the comment lifecycle store. Single-writer per process
// invocation; concurrent writers inside one process never target the
// same comment id.
type Store struct {
	root   string
	logger *zap.Logger
}

// Open prepares the partition directories under root.
func Open(root string, logger *zap.Logger) (*Store, error) {
	for _, status := range models.AllStatuses {
		if err := os.MkdirAll(filepath.Join(root, string(status)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create partition %s: %w", status, err)
		}
	}

	return &Store{root: root, logger: logger}, nil
}

func (s *Store) path(status models.Status, id string) string {
	return filepath.Join(s.root, string(status), id+".json")
}

// SavePending writes a comment into the pending partition. Saving the
// same comment id again overwrites the draft, so regeneration never
// duplicates. If the record already moved past pending the draft is
// discarded: a comment lives in exactly one partition, and a decision
// already taken on it is never forked by a late regeneration.
func (s *Store) SavePending(comment models.Comment) error {
	for _, status := range models.AllStatuses {
		if status == models.StatusPending {
			continue
		}
		if _, err := s.read(s.path(status, comment.ID)); err == nil {
			s.logger.Info("Comment already past pending, draft discarded",
				zap.String("comment_id", comment.ID),
				zap.String("status", string(status)))
			return nil
		}
	}

	comment.Status = models.StatusPending
	return s.write(models.StatusPending, comment)
}

// Get returns the comment and the partition currently holding it.
func (s *Store) Get(id string) (*models.Comment, models.Status, error) {
	for _, status := range models.AllStatuses {
		comment, err := s.read(s.path(status, id))
		if err == nil {
			return comment, status, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return nil, "", err
	}
	return nil, "", ErrNotFound
}

// List returns the readable comments of one partition ordered by
// creation time. Corrupt records are logged and skipped, never deleted.
func (s *Store) List(status models.Status) ([]models.Comment, error) {
	comments, corrupt, err := s.scan(status)
	if err != nil {
		return nil, err
	}
	for _, path := range corrupt {
		s.logger.Error("Skipping corrupt comment record", zap.String("path", path))
	}
	return comments, nil
}

// Scan returns the readable comments of one partition plus the paths of
// records that exist but cannot be decoded.
func (s *Store) Scan(status models.Status) ([]models.Comment, []string, error) {
	return s.scan(status)
}

func (s *Store) scan(status models.Status) ([]models.Comment, []string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(status)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read partition %s: %w", status, err)
	}

	var (
		comments []models.Comment
		corrupt  []string
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.root, string(status), entry.Name())
		comment, err := s.read(path)
		if err != nil {
			corrupt = append(corrupt, path)
			continue
		}
		comments = append(comments, *comment)
	}

	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, corrupt, nil
}

// Approve moves a pending comment to approved.
func (s *Store) Approve(id string) error {
	return s.transition(id, []models.Status{models.StatusPending}, models.StatusApproved, nil)
}

// Reject moves a pending comment to rejected.
func (s *Store) Reject(id string) error {
	return s.transition(id, []models.Status{models.StatusPending}, models.StatusRejected, nil)
}

// UpdateText replaces a comment's text in place after a refinement pass.
// Status is preserved; only pending and approved comments may be
// refined, and a comment without a continuation token cannot be.
func (s *Store) UpdateText(id, text, sessionToken string) error {
	comment, status, err := s.Get(id)
	if err != nil {
		return err
	}
	if status != models.StatusPending && status != models.StatusApproved {
		return &TerminalStateError{CommentID: id, Status: status}
	}

	comment.Text = text
	if sessionToken != "" {
		comment.SessionToken = sessionToken
	}
	comment.UpdatedAt = time.Now().UTC()

	return s.write(status, *comment)
}

// Publish moves a pending or approved comment to published via the
// external publisher. Replaying a publish on an already published
// comment is a no-op and does not call the publisher again. If the
// publisher reports failure the comment keeps its status and carries the
// error note.
func (s *Store) Publish(ctx context.Context, id string, publisher Publisher) error {
	if _, err := s.read(s.path(models.StatusPublished, id)); err == nil {
		return nil
	}

	comment, status, err := s.Get(id)
	if err != nil {
		return err
	}
	if status != models.StatusPending && status != models.StatusApproved {
		return &TerminalStateError{CommentID: id, Status: status}
	}

	result, err := publisher.Publish(ctx, *comment)
	if err != nil || !result.Success {
		reason := result.Error
		if err != nil {
			reason = err.Error()
		}
		if reason == "" {
			reason = "publish rejected by post source"
		}

		comment.LastError = reason
		comment.UpdatedAt = time.Now().UTC()
		if werr := s.write(status, *comment); werr != nil {
			s.logger.Error("Failed to attach publish error note",
				zap.String("comment_id", id), zap.Error(werr))
		}

		return &PublishError{CommentID: id, Reason: reason}
	}

	now := time.Now().UTC()
	return s.transition(id, []models.Status{status}, models.StatusPublished, func(c *models.Comment) {
		c.PublishedAt = &now
		c.RemoteID = result.RemoteID
		c.LastError = ""
	})
}

// transition relocates a comment between partitions. The target copy is
// written and verified before the source copy is removed, so there is no
// window where the record is readable from neither partition, and a
// retry of a completed transition finds the record already gone from the
// source and succeeds as a no-op.
func (s *Store) transition(id string, from []models.Status, to models.Status, mutate func(*models.Comment)) error {
	// Already there: the transition completed earlier.
	if _, err := s.read(s.path(to, id)); err == nil {
		return nil
	}

	var (
		comment *models.Comment
		source  models.Status
	)
	for _, status := range from {
		c, err := s.read(s.path(status, id))
		if err == nil {
			comment, source = c, status
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
	}

	if comment == nil {
		// Not in any allowed source: distinguish missing, terminal
		// and plain invalid for the operator.
		_, status, err := s.Get(id)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return &TerminalStateError{CommentID: id, Status: status}
		}
		return &InvalidTransitionError{CommentID: id, From: status, To: to}
	}

	if mutate != nil {
		mutate(comment)
	}
	comment.Status = to
	comment.UpdatedAt = time.Now().UTC()

	if err := s.write(to, *comment); err != nil {
		return err
	}

	// Existence check before removal: only delete the source once the
	// target is durably readable.
	if _, err := os.Stat(s.path(to, id)); err != nil {
		return fmt.Errorf("target record missing after write: %w", err)
	}

	if err := os.Remove(s.path(source, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove source record: %w", err)
	}

	s.logger.Info("Comment transitioned",
		zap.String("comment_id", id),
		zap.String("from", string(source)),
		zap.String("to", string(to)))

	return nil
}

func (s *Store) read(path string) (*models.Comment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	if err := json.Unmarshal(data, &comment); err != nil {
		return nil, &CorruptRecordError{Path: path, Err: err}
	}
	if comment.ID == "" || !comment.Status.Valid() {
		return nil, &CorruptRecordError{Path: path, Err: fmt.Errorf("missing id or status")}
	}

	return &comment, nil
}

// write persists a comment into a partition with write-then-rename so a
// crash mid-write never leaves a half-written record under the final
// name.
func (s *Store) write(status models.Status, comment models.Comment) error {
	data, err := json.MarshalIndent(comment, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode comment %s: %w", comment.ID, err)
	}

	final := s.path(status, comment.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write comment %s: %w", comment.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to place comment %s: %w", comment.ID, err)
	}

	return nil
}
