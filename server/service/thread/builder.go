// Package thread reconstructs the conversational history around a question or comment.
//
// Two depth policies coexist here. Prompt context walks the full ancestor chain of a
// comment, bounded only by MaxContextDepth as a guard against corrupt parent links.
// Trees rendered for clients stop expanding at a small fixed depth.
package thread

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/server/internal/observability"
	"github.com/hrygo/overflew/store"
)

const (
	// MaxContextDepth bounds the parent walk. Legitimate chains never get close.
	MaxContextDepth = 64
	// DefaultTreeDepth is the number of comment levels expanded by Tree.
	DefaultTreeDepth = 2

	unknownAuthor = "Unknown User"
	deletedBody   = "[deleted]"
)

// Builder assembles prompt context and comment trees from the store.
type Builder struct {
	store *store.Store
}

func NewBuilder(s *store.Store) *Builder {
	return &Builder{store: s}
}

// QuestionContext renders the question block that prefixes every prompt context.
func (b *Builder) QuestionContext(ctx context.Context, question *store.Question) (string, error) {
	tags, err := b.store.ListTags(ctx, &store.FindTag{QuestionID: &question.ID})
	if err != nil {
		return "", errors.Wrapf(err, "failed to list tags for question %d", question.ID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\n%s\n\n", question.Title, question.Body)
	if len(tags) > 0 {
		names := make([]string, 0, len(tags))
		for _, tag := range tags {
			names = append(names, tag.Name)
		}
		fmt.Fprintf(&sb, "TAGS: %s\n\n", strings.Join(names, ", "))
	}
	return sb.String(), nil
}

// CommentContext renders the owning question block followed by the conversation that led to
// comment, oldest ancestor first and comment itself last.
func (b *Builder) CommentContext(ctx context.Context, comment *store.Comment) (string, error) {
	question, err := b.store.GetQuestion(ctx, &store.FindQuestion{ID: &comment.QuestionID})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get question %d", comment.QuestionID)
	}
	if question == nil {
		return "", errors.Wrapf(store.ErrNotFound, "question %d", comment.QuestionID)
	}
	questionBlock, err := b.QuestionContext(ctx, question)
	if err != nil {
		return "", err
	}

	chain, err := b.Ancestry(ctx, comment)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(chain))
	for _, node := range chain {
		line, err := b.historyLine(ctx, node)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return questionBlock + "CONVERSATION HISTORY:\n" + strings.Join(lines, "\n\n"), nil
}

// Ancestry returns the chain from the top-level answer down to comment, inclusive.
// The walk stops early, with a warning, on a cycle, a parent in another question,
// a missing parent, or after MaxContextDepth nodes.
func (b *Builder) Ancestry(ctx context.Context, comment *store.Comment) ([]*store.Comment, error) {
	logger := observability.Logger(ctx)
	visited := map[int32]bool{}
	chain := []*store.Comment{}

	current := comment
	for current != nil {
		if visited[current.ID] {
			logger.Warn("comment parent chain has a cycle",
				slog.Int(observability.LogFieldCommentID, int(comment.ID)),
				slog.Int("repeated_id", int(current.ID)))
			break
		}
		visited[current.ID] = true
		chain = append(chain, current)

		if current.ParentID == nil {
			break
		}
		if len(chain) >= MaxContextDepth {
			logger.Warn("comment parent chain truncated",
				slog.Int(observability.LogFieldCommentID, int(comment.ID)),
				slog.Int("max_depth", MaxContextDepth))
			break
		}

		parentID := *current.ParentID
		parent, err := b.store.GetComment(ctx, &store.FindComment{ID: &parentID})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get parent comment %d", parentID)
		}
		if parent == nil {
			logger.Warn("comment parent missing",
				slog.Int(observability.LogFieldCommentID, int(current.ID)),
				slog.Int("parent_id", int(parentID)))
			break
		}
		if parent.QuestionID != comment.QuestionID {
			logger.Warn("comment parent belongs to another question",
				slog.Int(observability.LogFieldCommentID, int(current.ID)),
				slog.Int("parent_id", int(parentID)),
				slog.Int(observability.LogFieldQuestionID, int(parent.QuestionID)))
			break
		}
		current = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (b *Builder) historyLine(ctx context.Context, comment *store.Comment) (string, error) {
	role := "COMMENT"
	if comment.IsTopLevel() {
		role = "ANSWER"
	}
	author, isAI, err := b.author(ctx, comment.CreatorID)
	if err != nil {
		return "", err
	}
	marker := ""
	if isAI {
		marker = " (AI)"
	}
	body := comment.Body
	if comment.IsDeleted {
		body = deletedBody
	}
	return fmt.Sprintf("%s by %s%s: %s", role, author, marker, body), nil
}

func (b *Builder) author(ctx context.Context, userID int32) (string, bool, error) {
	user, err := b.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get user %d", userID)
	}
	if user == nil {
		return unknownAuthor, false, nil
	}
	return user.Username, user.IsAI, nil
}
