package store

import (
	"context"

	"github.com/pkg/errors"
)

type VoteTargetType string

const (
	VoteTargetQuestion VoteTargetType = "QUESTION"
	VoteTargetComment  VoteTargetType = "COMMENT"
)

const (
	VoteUp   int32 = 1
	VoteDown int32 = -1
)

// Vote is unique per (UserID, TargetType, TargetID).
type Vote struct {
	ID int32

	UserID     int32
	TargetType VoteTargetType
	TargetID   int32
	VoteType   int32

	CreatedTs int64
	UpdatedTs int64
}

type FindVote struct {
	ID         *int32
	UserID     *int32
	TargetType *VoteTargetType
	TargetID   *int32
}

type DeleteVote struct {
	ID int32
}

// CastVoteResult describes the effect of CastVote.
type CastVoteResult struct {
	Vote *Vote
	// Changed is false when an identical vote already existed.
	Changed bool
	// ReputationDelta is what was applied to the target author's reputation.
	ReputationDelta int32
}

func (s *Store) ListVotes(ctx context.Context, find *FindVote) ([]*Vote, error) {
	return s.driver.ListVotes(ctx, find)
}

func (s *Store) GetVote(ctx context.Context, find *FindVote) (*Vote, error) {
	list, err := s.ListVotes(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteVote(ctx context.Context, delete *DeleteVote) error {
	return s.driver.DeleteVote(ctx, delete)
}

// VoteScore returns the sum of vote directions on a target.
func (s *Store) VoteScore(ctx context.Context, targetType VoteTargetType, targetID int32) (int, error) {
	return s.driver.SumVotes(ctx, targetType, targetID)
}

// CastVote upserts the vote and adjusts the target author's reputation.
// Repeating a vote is a no-op; flipping direction overwrites the row and moves reputation by 2.
func (s *Store) CastVote(ctx context.Context, cast *Vote) (*CastVoteResult, error) {
	if cast.VoteType != VoteUp && cast.VoteType != VoteDown {
		return nil, errors.Errorf("invalid vote type %d", cast.VoteType)
	}

	result := &CastVoteResult{}
	err := s.WithTx(ctx, func(tx *Store) error {
		authorID, err := tx.voteTargetAuthor(ctx, cast.TargetType, cast.TargetID)
		if err != nil {
			return err
		}

		existing, err := tx.GetVote(ctx, &FindVote{UserID: &cast.UserID, TargetType: &cast.TargetType, TargetID: &cast.TargetID})
		if err != nil {
			return err
		}
		if existing != nil && existing.VoteType == cast.VoteType {
			result.Vote = existing
			return nil
		}

		ts := now()
		cast.CreatedTs, cast.UpdatedTs = ts, ts
		vote, err := tx.driver.UpsertVote(ctx, cast)
		if err != nil {
			return err
		}
		result.Vote = vote
		result.Changed = true
		result.ReputationDelta = cast.VoteType
		if existing != nil {
			result.ReputationDelta = 2 * cast.VoteType
		}
		if authorID == cast.UserID {
			result.ReputationDelta = 0
		}
		return tx.IncrementReputation(ctx, authorID, result.ReputationDelta)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) voteTargetAuthor(ctx context.Context, targetType VoteTargetType, targetID int32) (int32, error) {
	switch targetType {
	case VoteTargetQuestion:
		question, err := s.GetQuestion(ctx, &FindQuestion{ID: &targetID})
		if err != nil {
			return 0, err
		}
		if question == nil {
			return 0, errors.Wrapf(ErrNotFound, "question %d", targetID)
		}
		return question.CreatorID, nil
	case VoteTargetComment:
		comment, err := s.GetComment(ctx, &FindComment{ID: &targetID})
		if err != nil {
			return 0, err
		}
		if comment == nil {
			return 0, errors.Wrapf(ErrNotFound, "comment %d", targetID)
		}
		return comment.CreatorID, nil
	default:
		return 0, errors.Errorf("unknown vote target type %q", targetType)
	}
}
