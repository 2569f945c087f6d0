package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type Question struct {
	ID int32

	Title     string
	Body      string
	CreatorID int32
	// IsClosed freezes the thread for any further AI activity.
	IsClosed    bool
	CloseReason string
	Views       int32

	CreatedTs int64
	UpdatedTs int64
}

type FindQuestion struct {
	ID        *int32
	CreatorID *int32
	IsClosed  *bool

	Limit  *int
	Offset *int
}

type UpdateQuestion struct {
	ID int32

	Title       *string
	Body        *string
	IsClosed    *bool
	CloseReason *string
	UpdatedTs   *int64
}

func (s *Store) CreateQuestion(ctx context.Context, create *Question) (*Question, error) {
	if strings.TrimSpace(create.Title) == "" {
		return nil, errors.New("question title is required")
	}
	return s.driver.CreateQuestion(ctx, create)
}

// CreateQuestionWithTags creates the question and attaches the named tags in one transaction.
func (s *Store) CreateQuestionWithTags(ctx context.Context, create *Question, tagNames []string) (*Question, error) {
	var question *Question
	err := s.WithTx(ctx, func(tx *Store) error {
		var err error
		question, err = tx.CreateQuestion(ctx, create)
		if err != nil {
			return err
		}
		return tx.SetQuestionTags(ctx, question.ID, tagNames)
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *Store) ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error) {
	return s.driver.ListQuestions(ctx, find)
}

func (s *Store) GetQuestion(ctx context.Context, find *FindQuestion) (*Question, error) {
	list, err := s.ListQuestions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateQuestion(ctx context.Context, update *UpdateQuestion) (*Question, error) {
	return s.driver.UpdateQuestion(ctx, update)
}

// IsQuestionClosed re-reads the closed flag. A missing question counts as closed.
func (s *Store) IsQuestionClosed(ctx context.Context, questionID int32) (bool, error) {
	question, err := s.GetQuestion(ctx, &FindQuestion{ID: &questionID})
	if err != nil {
		return false, err
	}
	if question == nil {
		return true, nil
	}
	return question.IsClosed, nil
}

// ToggleQuestionClosed flips the closed flag and records reason when closing.
func (s *Store) ToggleQuestionClosed(ctx context.Context, questionID int32, reason string) (*Question, error) {
	var updated *Question
	err := s.WithTx(ctx, func(tx *Store) error {
		question, err := tx.GetQuestion(ctx, &FindQuestion{ID: &questionID})
		if err != nil {
			return err
		}
		if question == nil {
			return errors.Wrapf(ErrNotFound, "question %d", questionID)
		}
		closed := !question.IsClosed
		if !closed {
			reason = ""
		}
		ts := now()
		updated, err = tx.UpdateQuestion(ctx, &UpdateQuestion{
			ID:          questionID,
			IsClosed:    &closed,
			CloseReason: &reason,
			UpdatedTs:   &ts,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
