package store

import (
	"context"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Comment is a node in a question's reply tree. A comment without a parent is an answer.
type Comment struct {
	ID  int32
	UID string

	QuestionID int32
	ParentID   *int32
	CreatorID  int32
	Body       string
	IsDeleted  bool
	IsAccepted bool

	CreatedTs int64
	UpdatedTs int64
}

// IsTopLevel reports whether the comment answers the question directly.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

type FindComment struct {
	ID         *int32
	UID        *string
	QuestionID *int32
	ParentID   *int32
	CreatorID  *int32

	// TopLevelOnly restricts the result to answers.
	TopLevelOnly bool
	// IncludeDeleted also returns soft-deleted comments.
	IncludeDeleted bool

	Limit *int
}

type UpdateComment struct {
	ID int32

	Body       *string
	IsDeleted  *bool
	IsAccepted *bool
	UpdatedTs  *int64
}

func (s *Store) CreateComment(ctx context.Context, create *Comment) (*Comment, error) {
	if strings.TrimSpace(create.Body) == "" {
		return nil, errors.New("comment body is required")
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	return s.driver.CreateComment(ctx, create)
}

func (s *Store) ListComments(ctx context.Context, find *FindComment) ([]*Comment, error) {
	return s.driver.ListComments(ctx, find)
}

// GetComment returns the comment including soft-deleted ones; callers decide how to treat IsDeleted.
func (s *Store) GetComment(ctx context.Context, find *FindComment) (*Comment, error) {
	withDeleted := *find
	withDeleted.IncludeDeleted = true
	list, err := s.ListComments(ctx, &withDeleted)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) CountComments(ctx context.Context, find *FindComment) (int, error) {
	return s.driver.CountComments(ctx, find)
}

func (s *Store) UpdateComment(ctx context.Context, update *UpdateComment) (*Comment, error) {
	return s.driver.UpdateComment(ctx, update)
}

// SoftDeleteComment marks the comment deleted. Rows are never removed.
func (s *Store) SoftDeleteComment(ctx context.Context, id int32) (*Comment, error) {
	deleted, ts := true, now()
	return s.driver.UpdateComment(ctx, &UpdateComment{ID: id, IsDeleted: &deleted, UpdatedTs: &ts})
}

// AcceptComment marks an answer as accepted, clearing any previously accepted answer on the same question.
func (s *Store) AcceptComment(ctx context.Context, id int32) (*Comment, error) {
	var accepted *Comment
	err := s.WithTx(ctx, func(tx *Store) error {
		comment, err := tx.GetComment(ctx, &FindComment{ID: &id})
		if err != nil {
			return err
		}
		if comment == nil || comment.IsDeleted {
			return errors.Wrapf(ErrNotFound, "comment %d", id)
		}
		if !comment.IsTopLevel() {
			return errors.Errorf("comment %d is a reply and cannot be accepted", id)
		}
		answers, err := tx.ListComments(ctx, &FindComment{QuestionID: &comment.QuestionID, TopLevelOnly: true})
		if err != nil {
			return err
		}
		ts := now()
		for _, answer := range answers {
			if answer.IsAccepted && answer.ID != id {
				off := false
				if _, err := tx.UpdateComment(ctx, &UpdateComment{ID: answer.ID, IsAccepted: &off, UpdatedTs: &ts}); err != nil {
					return err
				}
			}
		}
		on := true
		accepted, err = tx.UpdateComment(ctx, &UpdateComment{ID: id, IsAccepted: &on, UpdatedTs: &ts})
		return err
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}
