package responder

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/plugin/ai"
	"github.com/hrygo/overflew/plugin/ai/timeout"
	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/internal/observability"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/store"
)

// response is one persona's unit of output: a comment plus an optional vote.
type response struct {
	persona  *store.Persona
	question *store.Question
	// parent is nil for a top-level answer.
	parent *store.Comment

	content   string
	context   string
	maxTokens int

	// voteOn is the heuristic input; empty means no vote.
	voteOn       string
	voteType     store.VoteTargetType
	voteTargetID int32
	voteAuthorID int32
}

func (r *Responder) handleQuestion(ctx context.Context, questionID int32) error {
	question, err := r.loadOpenQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if r.isBot(ctx, question.CreatorID) {
		return aierrors.GuardRejected("question authored by a bot account")
	}

	selected, err := r.selectResponders(ctx)
	if err != nil {
		return err
	}
	for _, p := range selected {
		r.pool.Enqueue(worker.Job{
			Name: "respond.answer",
			Run: func(ctx context.Context) error {
				_, err := r.Answer(ctx, p, questionID)
				return err
			},
		}, worker.Parallel())
	}
	observability.Logger(ctx).Info("dispatched persona answers",
		slog.Int(observability.LogFieldQuestionID, int(questionID)),
		slog.Int("personas", len(selected)))
	return nil
}

func (r *Responder) handleComment(ctx context.Context, commentID int32) error {
	comment, err := r.loadOpenComment(ctx, commentID)
	if err != nil {
		return err
	}
	if r.isBot(ctx, comment.CreatorID) {
		return aierrors.GuardRejected("comment authored by a bot account")
	}
	if _, err := r.loadOpenQuestion(ctx, comment.QuestionID); err != nil {
		return err
	}

	if !comment.IsTopLevel() {
		p, err := r.pickResponder(ctx)
		if err != nil {
			return err
		}
		_, err = r.Reply(ctx, p, commentID)
		return err
	}

	selected, err := r.selectResponders(ctx)
	if err != nil {
		return err
	}
	for _, p := range selected {
		r.pool.Enqueue(worker.Job{
			Name: "respond.answer_reply",
			Run: func(ctx context.Context) error {
				_, err := r.Reply(ctx, p, commentID)
				return err
			},
		}, worker.Parallel())
	}
	observability.Logger(ctx).Info("dispatched persona replies",
		slog.Int(observability.LogFieldCommentID, int(commentID)),
		slog.Int("personas", len(selected)))
	return nil
}

func (r *Responder) handleVote(ctx context.Context, voteID int32) error {
	vote, err := r.store.GetVote(ctx, &store.FindVote{ID: &voteID})
	if err != nil {
		return err
	}
	if vote == nil {
		return aierrors.NotFound("vote", voteID)
	}
	if r.isBot(ctx, vote.UserID) {
		return aierrors.GuardRejected("vote cast by a bot account")
	}
	score, err := r.store.VoteScore(ctx, vote.TargetType, vote.TargetID)
	if err != nil {
		return err
	}

	switch vote.TargetType {
	case store.VoteTargetQuestion:
		question, err := r.loadOpenQuestion(ctx, vote.TargetID)
		if err != nil {
			return err
		}
		if question.CreatorID == vote.UserID {
			return aierrors.GuardRejected("self-vote")
		}
		p, err := r.pickResponder(ctx)
		if err != nil {
			return err
		}
		questionContext, err := r.builder.QuestionContext(ctx, question)
		if err != nil {
			return err
		}
		_, err = r.respond(ctx, &response{
			persona:      p,
			question:     question,
			content:      questionVoteContent(p, question, vote.VoteType, score),
			context:      questionContext,
			maxTokens:    r.config.AnswerMaxTokens,
			voteOn:       question.Title + "\n\n" + question.Body,
			voteType:     store.VoteTargetQuestion,
			voteTargetID: question.ID,
			voteAuthorID: question.CreatorID,
		})
		return err

	case store.VoteTargetComment:
		comment, err := r.loadOpenComment(ctx, vote.TargetID)
		if err != nil {
			return err
		}
		if comment.CreatorID == vote.UserID {
			return aierrors.GuardRejected("self-vote")
		}
		question, err := r.loadOpenQuestion(ctx, comment.QuestionID)
		if err != nil {
			return err
		}
		p, err := r.pickResponder(ctx)
		if err != nil {
			return err
		}
		commentContext, err := r.builder.CommentContext(ctx, comment)
		if err != nil {
			return err
		}
		_, err = r.respond(ctx, &response{
			persona:      p,
			question:     question,
			parent:       comment,
			content:      commentVoteContent(p, comment, vote.VoteType, score),
			context:      commentContext,
			maxTokens:    r.config.ReplyMaxTokens,
			voteOn:       comment.Body,
			voteType:     store.VoteTargetComment,
			voteTargetID: comment.ID,
			voteAuthorID: comment.CreatorID,
		})
		return err
	}
	return aierrors.InvalidArgument("unknown vote target type " + string(vote.TargetType))
}

// Answer has persona post a top-level answer to the question and vote on it.
func (r *Responder) Answer(ctx context.Context, p *store.Persona, questionID int32) (*store.Comment, error) {
	question, err := r.loadOpenQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	questionContext, err := r.builder.QuestionContext(ctx, question)
	if err != nil {
		return nil, err
	}
	return r.respond(ctx, &response{
		persona:      p,
		question:     question,
		content:      answerContent(p, question),
		context:      questionContext,
		maxTokens:    r.config.AnswerMaxTokens,
		voteOn:       question.Title + "\n\n" + question.Body,
		voteType:     store.VoteTargetQuestion,
		voteTargetID: question.ID,
		voteAuthorID: question.CreatorID,
	})
}

type replyOptions struct {
	skipVote bool
}

// ReplyOption configures Reply.
type ReplyOption func(*replyOptions)

// WithoutVote skips the simulated vote on the replied-to comment.
func WithoutVote() ReplyOption {
	return func(o *replyOptions) {
		o.skipVote = true
	}
}

// Reply has persona reply to the comment and, unless WithoutVote is given, vote on it.
func (r *Responder) Reply(ctx context.Context, p *store.Persona, commentID int32, opts ...ReplyOption) (*store.Comment, error) {
	options := replyOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	comment, err := r.loadOpenComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	question, err := r.loadOpenQuestion(ctx, comment.QuestionID)
	if err != nil {
		return nil, err
	}
	commentContext, err := r.builder.CommentContext(ctx, comment)
	if err != nil {
		return nil, err
	}

	content := answerFollowUpContent(p, comment)
	if !comment.IsTopLevel() {
		parent, err := r.store.GetComment(ctx, &store.FindComment{ID: comment.ParentID})
		if err != nil {
			return nil, err
		}
		// A removed parent must not leak its text into the prompt.
		if parent != nil && !parent.IsDeleted {
			content = replyContent(p, parent, comment)
		}
	}

	resp := &response{
		persona:   p,
		question:  question,
		parent:    comment,
		content:   content,
		context:   commentContext,
		maxTokens: r.config.ReplyMaxTokens,
	}
	if !options.skipVote {
		resp.voteOn = comment.Body
		resp.voteType = store.VoteTargetComment
		resp.voteTargetID = comment.ID
		resp.voteAuthorID = comment.CreatorID
	}
	return r.respond(ctx, resp)
}

// respond generates the persona's text and persists it with the optional vote in one transaction.
func (r *Responder) respond(ctx context.Context, resp *response) (*store.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.JobTimeout)
	defer cancel()
	logger := observability.Logger(ctx).With(
		slog.String(observability.LogFieldPersona, resp.persona.Name),
		slog.Int(observability.LogFieldQuestionID, int(resp.question.ID)),
	)

	bot, err := r.personas.BotAccountFor(ctx, resp.persona)
	if err != nil {
		return nil, aierrors.PersistenceFailed("failed to resolve bot account", err)
	}

	prompt := FormatPrompt(resp.persona, resp.content, resp.context)
	logger.Debug("formatted prompt", slog.String("prompt", timeout.Truncate(prompt)))
	text := r.completion.Complete(ctx, ai.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: resp.maxTokens,
		Model:     resp.persona.Model,
		APIKey:    resp.persona.APIKey,
		BaseURL:   resp.persona.BaseURL,
	})
	if ai.IsFallback(text) {
		if !r.config.PersistFallback {
			return nil, aierrors.CompletionFailed("completion returned the fallback response")
		}
		logger.Warn("persisting fallback response")
	}

	var voteType int32
	if resp.voteOn != "" && resp.voteAuthorID != bot.ID {
		voteType = DetermineVoteType(r.rand, resp.persona, resp.voteOn)
	}

	var created *store.Comment
	err = r.store.WithTx(ctx, func(tx *store.Store) error {
		closed, err := tx.IsQuestionClosed(ctx, resp.question.ID)
		if err != nil {
			return err
		}
		if closed {
			return aierrors.GuardRejected("question closed before the response was saved")
		}

		create := &store.Comment{
			QuestionID: resp.question.ID,
			CreatorID:  bot.ID,
			Body:       text,
		}
		if resp.parent != nil {
			parent, err := tx.GetComment(ctx, &store.FindComment{ID: &resp.parent.ID})
			if err != nil {
				return err
			}
			if parent == nil || parent.IsDeleted {
				return aierrors.NotFound("comment", resp.parent.ID)
			}
			create.ParentID = &parent.ID
		}
		created, err = tx.CreateComment(ctx, create)
		if err != nil {
			return err
		}

		if voteType == 0 {
			return nil
		}
		_, err = tx.CastVote(ctx, &store.Vote{
			UserID:     bot.ID,
			TargetType: resp.voteType,
			TargetID:   resp.voteTargetID,
			VoteType:   voteType,
		})
		return err
	})
	if err != nil {
		var aiErr *aierrors.AIError
		if errors.As(err, &aiErr) {
			return nil, err
		}
		return nil, aierrors.PersistenceFailed("failed to save persona response", err)
	}

	logger.Info("persona responded",
		slog.Int(observability.LogFieldCommentID, int(created.ID)),
		slog.Int("vote", int(voteType)))
	return created, nil
}

// selectResponders draws the personas answering a question or an answer. Every active persona
// passes its activity gate independently. More than MinResponders passing are subsampled to a
// random count in [MinResponders, passed]; fewer are topped up from the rest up to
// min(MinResponders, total).
func (r *Responder) selectResponders(ctx context.Context) ([]*store.Persona, error) {
	all, err := r.personas.ActivePersonas(ctx)
	if err != nil {
		return nil, err
	}
	passed, rest := make([]*store.Persona, 0, len(all)), make([]*store.Persona, 0, len(all))
	for _, p := range all {
		if r.personas.ShouldRespond(p) {
			passed = append(passed, p)
		} else {
			rest = append(rest, p)
		}
	}

	floor := r.config.MinResponders
	if len(passed) > floor {
		count := floor + r.rand.IntN(len(passed)-floor+1)
		return pick(passed, random.Sample(r.rand, len(passed), count)), nil
	}
	selected := passed
	if short := min(floor, len(all)) - len(passed); short > 0 {
		selected = append(selected, pick(rest, random.Sample(r.rand, len(rest), short))...)
	}
	return selected, nil
}

// pickResponder draws one persona at random and applies its activity gate.
func (r *Responder) pickResponder(ctx context.Context) (*store.Persona, error) {
	all, err := r.personas.ActivePersonas(ctx)
	if err != nil {
		return nil, err
	}
	p := all[r.rand.IntN(len(all))]
	if !r.personas.ShouldRespond(p) {
		return nil, aierrors.GuardRejected("persona " + p.Name + " declined to respond")
	}
	return p, nil
}

func (r *Responder) loadOpenQuestion(ctx context.Context, questionID int32) (*store.Question, error) {
	question, err := r.store.GetQuestion(ctx, &store.FindQuestion{ID: &questionID})
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, aierrors.NotFound("question", questionID)
	}
	if question.IsClosed {
		return nil, aierrors.GuardRejected("question closed")
	}
	return question, nil
}

func (r *Responder) loadOpenComment(ctx context.Context, commentID int32) (*store.Comment, error) {
	comment, err := r.store.GetComment(ctx, &store.FindComment{ID: &commentID})
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.IsDeleted {
		return nil, aierrors.NotFound("comment", commentID)
	}
	return comment, nil
}

func pick(personas []*store.Persona, indices []int) []*store.Persona {
	out := make([]*store.Persona, 0, len(indices))
	for _, i := range indices {
		out = append(out, personas[i])
	}
	return out
}
