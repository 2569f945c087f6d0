package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/store"
)

func TestTree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)
	b := NewBuilder(f.store)

	answer := f.comment(ctx, t, nil, f.bot, "answer")
	reply := f.comment(ctx, t, answer, f.human, "reply")
	nested := f.comment(ctx, t, reply, f.bot, "nested")
	f.comment(ctx, t, nested, f.human, "deeper")
	second := f.comment(ctx, t, nil, f.human, "second answer")
	removed := f.comment(ctx, t, second, f.bot, "removed")
	_, err := f.store.SoftDeleteComment(ctx, removed.ID)
	require.NoError(t, err)

	_, err = f.store.CastVote(ctx, &store.Vote{UserID: f.human.ID, TargetType: store.VoteTargetComment, TargetID: answer.ID, VoteType: store.VoteUp})
	require.NoError(t, err)

	tests := []struct {
		name          string
		depth         int
		wantReplies   int
		wantHidden    int
		wantNestedCnt int
	}{
		{name: "default depth", depth: 0, wantReplies: 1, wantNestedCnt: 0},
		{name: "answers only", depth: 1, wantReplies: 0, wantHidden: 3},
		{name: "full", depth: 10, wantReplies: 1, wantNestedCnt: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread, err := b.Tree(ctx, f.question.ID, tt.depth)
			require.NoError(t, err)
			require.NotNil(t, thread)
			require.Len(t, thread.Answers, 2)

			first := thread.Answers[0]
			assert.Equal(t, answer.ID, first.ID)
			assert.Equal(t, 1, first.Score)
			assert.True(t, first.AuthorIsAI)
			assert.Equal(t, "Code Guru", first.Author)
			assert.Len(t, first.Replies, tt.wantReplies)
			assert.Equal(t, tt.wantHidden, first.HiddenReplies)
			if tt.wantReplies > 0 {
				assert.Len(t, first.Replies[0].Replies, tt.wantNestedCnt)
			}

			assert.Empty(t, thread.Answers[1].Replies)
		})
	}

	t.Run("default depth hides grandchildren", func(t *testing.T) {
		thread, err := b.Tree(ctx, f.question.ID, DefaultTreeDepth)
		require.NoError(t, err)
		assert.Equal(t, 2, thread.Answers[0].Replies[0].HiddenReplies)
	})

	t.Run("missing question", func(t *testing.T) {
		thread, err := b.Tree(ctx, 424242, 0)
		require.NoError(t, err)
		assert.Nil(t, thread)
	})
}

func TestTree_DeletedAnswerKeepsLiveReplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)
	b := NewBuilder(f.store)

	answer := f.comment(ctx, t, nil, f.bot, "outdated answer")
	reply := f.comment(ctx, t, answer, f.human, "this still helped me")
	orphaned := f.comment(ctx, t, nil, f.human, "retracted")
	orphanedReply := f.comment(ctx, t, orphaned, f.bot, "also retracted")
	for _, id := range []int32{answer.ID, orphaned.ID, orphanedReply.ID} {
		_, err := f.store.SoftDeleteComment(ctx, id)
		require.NoError(t, err)
	}

	thread, err := b.Tree(ctx, f.question.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, thread)
	require.Len(t, thread.Answers, 1)

	masked := thread.Answers[0]
	assert.Equal(t, answer.ID, masked.ID)
	assert.Equal(t, "[deleted]", masked.Body)
	require.Len(t, masked.Replies, 1)
	assert.Equal(t, reply.ID, masked.Replies[0].ID)
	assert.Equal(t, "this still helped me", masked.Replies[0].Body)
}
