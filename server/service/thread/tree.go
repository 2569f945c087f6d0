package thread

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

// Node is one comment in a rendered thread.
type Node struct {
	ID         int32   `json:"id"`
	UID        string  `json:"uid"`
	ParentID   *int32  `json:"parentId,omitempty"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	AuthorIsAI bool    `json:"authorIsAi"`
	Score      int     `json:"score"`
	IsAccepted bool    `json:"isAccepted"`
	CreatedTs  int64   `json:"createdTs"`
	Replies    []*Node `json:"replies,omitempty"`
	// HiddenReplies counts descendants below the expansion depth.
	HiddenReplies int `json:"hiddenReplies,omitempty"`
}

// Thread is a question with its answers expanded to a fixed depth.
type Thread struct {
	Question *store.Question `json:"question"`
	Score    int             `json:"score"`
	Answers  []*Node         `json:"answers"`
}

// Tree renders the question's visible comments. maxDepth counts comment levels:
// 1 shows answers only, 2 adds their direct replies. Values below 1 use DefaultTreeDepth.
// A deleted comment with live replies is kept with its body masked; deleted branches
// without live replies are dropped. Returns nil when the question does not exist.
func (b *Builder) Tree(ctx context.Context, questionID int32, maxDepth int) (*Thread, error) {
	if maxDepth < 1 {
		maxDepth = DefaultTreeDepth
	}
	question, err := b.store.GetQuestion(ctx, &store.FindQuestion{ID: &questionID})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get question %d", questionID)
	}
	if question == nil {
		return nil, nil
	}
	score, err := b.store.VoteScore(ctx, store.VoteTargetQuestion, questionID)
	if err != nil {
		return nil, err
	}

	comments, err := b.store.ListComments(ctx, &store.FindComment{QuestionID: &questionID, IncludeDeleted: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list comments for question %d", questionID)
	}
	visible := liveBranches(comments)
	children := map[int32][]*store.Comment{}
	roots := []*store.Comment{}
	for _, comment := range comments {
		if !visible[comment.ID] {
			continue
		}
		if comment.IsTopLevel() {
			roots = append(roots, comment)
			continue
		}
		children[*comment.ParentID] = append(children[*comment.ParentID], comment)
	}

	thread := &Thread{Question: question, Score: score, Answers: make([]*Node, 0, len(roots))}
	for _, root := range roots {
		node, err := b.buildNode(ctx, root, children, 1, maxDepth, map[int32]bool{})
		if err != nil {
			return nil, err
		}
		thread.Answers = append(thread.Answers, node)
	}
	return thread, nil
}

func (b *Builder) buildNode(ctx context.Context, comment *store.Comment, children map[int32][]*store.Comment, depth, maxDepth int, seen map[int32]bool) (*Node, error) {
	seen[comment.ID] = true
	author, isAI, err := b.author(ctx, comment.CreatorID)
	if err != nil {
		return nil, err
	}
	score, err := b.store.VoteScore(ctx, store.VoteTargetComment, comment.ID)
	if err != nil {
		return nil, err
	}
	body := comment.Body
	if comment.IsDeleted {
		body = deletedBody
	}
	node := &Node{
		ID:         comment.ID,
		UID:        comment.UID,
		ParentID:   comment.ParentID,
		Body:       body,
		Author:     author,
		AuthorIsAI: isAI,
		Score:      score,
		IsAccepted: comment.IsAccepted,
		CreatedTs:  comment.CreatedTs,
	}

	if depth >= maxDepth {
		node.HiddenReplies = countDescendants(comment.ID, children, seen)
		return node, nil
	}
	for _, child := range children[comment.ID] {
		if seen[child.ID] {
			continue
		}
		reply, err := b.buildNode(ctx, child, children, depth+1, maxDepth, seen)
		if err != nil {
			return nil, err
		}
		node.Replies = append(node.Replies, reply)
	}
	return node, nil
}

func countDescendants(id int32, children map[int32][]*store.Comment, seen map[int32]bool) int {
	count := 0
	stack := []int32{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[current] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			count++
			stack = append(stack, child.ID)
		}
	}
	return count
}

// liveBranches marks every live comment and each of its ancestors.
func liveBranches(comments []*store.Comment) map[int32]bool {
	byID := make(map[int32]*store.Comment, len(comments))
	for _, comment := range comments {
		byID[comment.ID] = comment
	}
	visible := make(map[int32]bool, len(comments))
	for _, comment := range comments {
		if comment.IsDeleted {
			continue
		}
		current := comment
		for depth := 0; current != nil && !visible[current.ID] && depth < MaxContextDepth; depth++ {
			visible[current.ID] = true
			if current.ParentID == nil {
				break
			}
			current = byID[*current.ParentID]
		}
	}
	return visible
}
