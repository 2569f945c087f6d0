package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/store"
)

func TestCommentStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user, err := createTestingUser(ctx, ts, "asker")
	require.NoError(t, err)
	question, err := ts.CreateQuestion(ctx, &store.Question{Title: "Tree?", CreatorID: user.ID})
	require.NoError(t, err)

	_, err = ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, CreatorID: user.ID, Body: " "})
	require.Error(t, err)

	answer, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, CreatorID: user.ID, Body: "An answer"})
	require.NoError(t, err)
	require.NotEmpty(t, answer.UID)
	require.True(t, answer.IsTopLevel())

	reply, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, ParentID: &answer.ID, CreatorID: user.ID, Body: "A reply"})
	require.NoError(t, err)
	require.False(t, reply.IsTopLevel())
	require.Equal(t, answer.ID, *reply.ParentID)

	answers, err := ts.ListComments(ctx, &store.FindComment{QuestionID: &question.ID, TopLevelOnly: true})
	require.NoError(t, err)
	require.Len(t, answers, 1)

	replies, err := ts.ListComments(ctx, &store.FindComment{ParentID: &answer.ID})
	require.NoError(t, err)
	require.Len(t, replies, 1)

	count, err := ts.CountComments(ctx, &store.FindComment{QuestionID: &question.ID})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = ts.SoftDeleteComment(ctx, reply.ID)
	require.NoError(t, err)
	count, err = ts.CountComments(ctx, &store.FindComment{QuestionID: &question.ID})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	deleted, err := ts.GetComment(ctx, &store.FindComment{ID: &reply.ID})
	require.NoError(t, err)
	require.NotNil(t, deleted)
	require.True(t, deleted.IsDeleted)
}

func TestAcceptComment(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user, err := createTestingUser(ctx, ts, "asker")
	require.NoError(t, err)
	question, err := ts.CreateQuestion(ctx, &store.Question{Title: "Which one?", CreatorID: user.ID})
	require.NoError(t, err)

	first, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, CreatorID: user.ID, Body: "first"})
	require.NoError(t, err)
	second, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, CreatorID: user.ID, Body: "second"})
	require.NoError(t, err)
	reply, err := ts.CreateComment(ctx, &store.Comment{QuestionID: question.ID, ParentID: &first.ID, CreatorID: user.ID, Body: "reply"})
	require.NoError(t, err)

	accepted, err := ts.AcceptComment(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, accepted.IsAccepted)

	accepted, err = ts.AcceptComment(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, accepted.IsAccepted)

	got, err := ts.GetComment(ctx, &store.FindComment{ID: &first.ID})
	require.NoError(t, err)
	require.False(t, got.IsAccepted)

	_, err = ts.AcceptComment(ctx, reply.ID)
	require.Error(t, err)
}
