package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/store"
)

func TestQuestionStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user, err := createTestingUser(ctx, ts, "asker")
	require.NoError(t, err)

	_, err = ts.CreateQuestion(ctx, &store.Question{Title: "   ", CreatorID: user.ID})
	require.Error(t, err)

	question, err := ts.CreateQuestionWithTags(ctx, &store.Question{
		Title:     "How do I reverse a slice in Go?",
		Body:      "Looking for the idiomatic way.",
		CreatorID: user.ID,
	}, []string{"Go", " slices ", "go", ""})
	require.NoError(t, err)
	require.False(t, question.IsClosed)

	tags, err := ts.ListTags(ctx, &store.FindTag{QuestionID: &question.ID})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "go", tags[0].Name)
	require.Equal(t, "slices", tags[1].Name)

	got, err := ts.GetQuestion(ctx, &store.FindQuestion{ID: &question.ID})
	require.NoError(t, err)
	require.Equal(t, question.Title, got.Title)
}

func TestToggleQuestionClosed(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user, err := createTestingUser(ctx, ts, "asker")
	require.NoError(t, err)
	question, err := ts.CreateQuestion(ctx, &store.Question{Title: "Closing soon", CreatorID: user.ID})
	require.NoError(t, err)

	closed, err := ts.IsQuestionClosed(ctx, question.ID)
	require.NoError(t, err)
	require.False(t, closed)

	toggled, err := ts.ToggleQuestionClosed(ctx, question.ID, "duplicate")
	require.NoError(t, err)
	require.True(t, toggled.IsClosed)
	require.Equal(t, "duplicate", toggled.CloseReason)

	toggled, err = ts.ToggleQuestionClosed(ctx, question.ID, "ignored")
	require.NoError(t, err)
	require.False(t, toggled.IsClosed)
	require.Empty(t, toggled.CloseReason)

	missing := int32(4242)
	closed, err = ts.IsQuestionClosed(ctx, missing)
	require.NoError(t, err)
	require.True(t, closed)

	_, err = ts.ToggleQuestionClosed(ctx, missing, "")
	require.ErrorIs(t, err, store.ErrNotFound)
}
