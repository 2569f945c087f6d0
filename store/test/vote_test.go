package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/store"
)

func TestCastVote(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	author, err := createTestingUser(ctx, ts, "author")
	require.NoError(t, err)
	voter, err := createTestingUser(ctx, ts, "voter")
	require.NoError(t, err)
	question, err := ts.CreateQuestion(ctx, &store.Question{Title: "Vote on me", CreatorID: author.ID})
	require.NoError(t, err)
	answer, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, CreatorID: author.ID, Body: "answer"})
	require.NoError(t, err)

	reputation := func() int32 {
		user, err := ts.GetUser(ctx, &store.FindUser{ID: &author.ID})
		require.NoError(t, err)
		return user.Reputation
	}

	tests := []struct {
		name       string
		voteType   int32
		changed    bool
		delta      int32
		score      int
		reputation int32
	}{
		{name: "first upvote", voteType: store.VoteUp, changed: true, delta: 1, score: 1, reputation: 1},
		{name: "repeat upvote is a no-op", voteType: store.VoteUp, changed: false, delta: 0, score: 1, reputation: 1},
		{name: "flip to downvote", voteType: store.VoteDown, changed: true, delta: -2, score: -1, reputation: -1},
		{name: "flip back", voteType: store.VoteUp, changed: true, delta: 2, score: 1, reputation: 1},
	}
	for _, tt := range tests {
		result, err := ts.CastVote(ctx, &store.Vote{
			UserID:     voter.ID,
			TargetType: store.VoteTargetComment,
			TargetID:   answer.ID,
			VoteType:   tt.voteType,
		})
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.changed, result.Changed, tt.name)
		require.Equal(t, tt.delta, result.ReputationDelta, tt.name)

		score, err := ts.VoteScore(ctx, store.VoteTargetComment, answer.ID)
		require.NoError(t, err)
		require.Equal(t, tt.score, score, tt.name)
		require.Equal(t, tt.reputation, reputation(), tt.name)
	}

	target := store.VoteTargetComment
	votes, err := ts.ListVotes(ctx, &store.FindVote{TargetType: &target, TargetID: &answer.ID})
	require.NoError(t, err)
	require.Len(t, votes, 1)
}

func TestCastVoteEdgeCases(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	author, err := createTestingUser(ctx, ts, "author")
	require.NoError(t, err)
	question, err := ts.CreateQuestion(ctx, &store.Question{Title: "Self vote", CreatorID: author.ID})
	require.NoError(t, err)

	result, err := ts.CastVote(ctx, &store.Vote{UserID: author.ID, TargetType: store.VoteTargetQuestion, TargetID: question.ID, VoteType: store.VoteUp})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Zero(t, result.ReputationDelta)

	_, err = ts.CastVote(ctx, &store.Vote{UserID: author.ID, TargetType: store.VoteTargetQuestion, TargetID: question.ID, VoteType: 3})
	require.Error(t, err)

	_, err = ts.CastVote(ctx, &store.Vote{UserID: author.ID, TargetType: store.VoteTargetComment, TargetID: 777, VoteType: store.VoteDown})
	require.ErrorIs(t, err, store.ErrNotFound)
}
