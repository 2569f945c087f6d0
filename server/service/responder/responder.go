// Package responder decides which AI personas react to forum activity and
// authors their answers, replies and votes.
//
// Triggers run on the request path and only do cheap checks before enqueueing.
// Every job re-reads the state it needs, so a job may find its target gone,
// closed or otherwise ineligible and end with a guard rejection.
package responder

import (
	"context"
	"log/slog"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/plugin/ai"
	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/server/service/persona"
	"github.com/hrygo/overflew/server/service/thread"
	"github.com/hrygo/overflew/store"
)

const (
	// MinResponders is the number of personas a new question or answer draws when enough exist.
	MinResponders = 7

	DefaultAnswerMaxTokens = 4096
	DefaultReplyMaxTokens  = 1024
)

// Kind names the content a manual response targets.
type Kind string

const (
	KindQuestion Kind = "question"
	KindComment  Kind = "comment"
)

type Config struct {
	MinResponders   int
	AnswerMaxTokens int
	ReplyMaxTokens  int
	// PersistFallback publishes the completion fallback text as a real comment.
	PersistFallback bool
}

// NewConfigFromProfile creates a Config from the process profile.
func NewConfigFromProfile(p *profile.Profile) Config {
	config := Config{
		MinResponders:   MinResponders,
		AnswerMaxTokens: DefaultAnswerMaxTokens,
		ReplyMaxTokens:  DefaultReplyMaxTokens,
		PersistFallback: p.AIPersistFallback,
	}
	if p.AIMaxTokens > 0 {
		config.AnswerMaxTokens = p.AIMaxTokens
	}
	return config
}

type Responder struct {
	store      *store.Store
	pool       *worker.Pool
	personas   *persona.Registry
	builder    *thread.Builder
	completion ai.CompletionService
	rand       random.Source
	config     Config
}

// New creates a Responder. A nil src uses the process-wide random source.
func New(s *store.Store, pool *worker.Pool, personas *persona.Registry, completion ai.CompletionService, config Config, src random.Source) *Responder {
	if config.MinResponders <= 0 {
		config.MinResponders = MinResponders
	}
	if config.AnswerMaxTokens <= 0 {
		config.AnswerMaxTokens = DefaultAnswerMaxTokens
	}
	if config.ReplyMaxTokens <= 0 {
		config.ReplyMaxTokens = DefaultReplyMaxTokens
	}
	return &Responder{
		store:      s,
		pool:       pool,
		personas:   personas,
		builder:    thread.NewBuilder(s),
		completion: completion,
		rand:       random.Or(src),
		config:     config,
	}
}

// OnQuestionCreated enqueues persona answers for a new question.
// It reports whether a job was enqueued.
func (r *Responder) OnQuestionCreated(ctx context.Context, questionID int32) bool {
	question, err := r.store.GetQuestion(ctx, &store.FindQuestion{ID: &questionID})
	if err != nil {
		slog.Error("failed to read question for trigger", slog.Int("question_id", int(questionID)), slog.String("error", err.Error()))
		return false
	}
	if question == nil || r.isBot(ctx, question.CreatorID) {
		return false
	}
	r.pool.Enqueue(worker.Job{
		Name: "respond.question",
		Run: func(ctx context.Context) error {
			return r.handleQuestion(ctx, questionID)
		},
	})
	return true
}

// OnCommentCreated enqueues persona replies for a new answer or comment.
// Comments authored by bot accounts never enqueue anything.
func (r *Responder) OnCommentCreated(ctx context.Context, commentID int32) bool {
	comment, err := r.store.GetComment(ctx, &store.FindComment{ID: &commentID})
	if err != nil {
		slog.Error("failed to read comment for trigger", slog.Int("comment_id", int(commentID)), slog.String("error", err.Error()))
		return false
	}
	if comment == nil || comment.IsDeleted || r.isBot(ctx, comment.CreatorID) {
		return false
	}
	r.pool.Enqueue(worker.Job{
		Name: "respond.comment",
		Run: func(ctx context.Context) error {
			return r.handleComment(ctx, commentID)
		},
	})
	return true
}

// OnVoteCast enqueues a persona reaction to a vote. Self-votes and votes cast by bot
// accounts never enqueue anything.
func (r *Responder) OnVoteCast(ctx context.Context, voteID int32) bool {
	vote, err := r.store.GetVote(ctx, &store.FindVote{ID: &voteID})
	if err != nil {
		slog.Error("failed to read vote for trigger", slog.Int("vote_id", int(voteID)), slog.String("error", err.Error()))
		return false
	}
	if vote == nil || r.isBot(ctx, vote.UserID) {
		return false
	}
	authorID, found, err := r.targetAuthor(ctx, vote.TargetType, vote.TargetID)
	if err != nil || !found || authorID == vote.UserID {
		return false
	}
	r.pool.Enqueue(worker.Job{
		Name: "respond.vote",
		Run: func(ctx context.Context) error {
			return r.handleVote(ctx, voteID)
		},
	})
	return true
}

// RespondAs runs one persona against the given content as a parallel job.
// Unless force is set the persona's activity gate still applies.
func (r *Responder) RespondAs(kind Kind, contentID, personaID int32, force bool) *worker.Future {
	return r.pool.Enqueue(worker.Job{
		Name: "respond.manual",
		Run: func(ctx context.Context) error {
			p, err := r.personas.GetPersona(ctx, personaID)
			if err != nil {
				return err
			}
			if p == nil {
				return aierrors.NotFound("persona", personaID)
			}
			if !force && !r.personas.ShouldRespond(p) {
				return aierrors.GuardRejected("persona " + p.Name + " declined to respond")
			}
			switch kind {
			case KindQuestion:
				_, err = r.Answer(ctx, p, contentID)
			case KindComment:
				_, err = r.Reply(ctx, p, contentID)
			default:
				err = aierrors.InvalidArgument("unknown content kind " + string(kind))
			}
			return err
		},
	}, worker.Parallel())
}

func (r *Responder) isBot(ctx context.Context, userID int32) bool {
	isBot, err := r.personas.IsBotAccount(ctx, userID)
	if err != nil {
		slog.Error("failed to read user", slog.Int("user_id", int(userID)), slog.String("error", err.Error()))
		return true
	}
	return isBot
}

func (r *Responder) targetAuthor(ctx context.Context, targetType store.VoteTargetType, targetID int32) (int32, bool, error) {
	switch targetType {
	case store.VoteTargetQuestion:
		question, err := r.store.GetQuestion(ctx, &store.FindQuestion{ID: &targetID})
		if err != nil || question == nil {
			return 0, false, err
		}
		return question.CreatorID, true, nil
	case store.VoteTargetComment:
		comment, err := r.store.GetComment(ctx, &store.FindComment{ID: &targetID})
		if err != nil || comment == nil || comment.IsDeleted {
			return 0, false, err
		}
		return comment.CreatorID, true, nil
	}
	return 0, false, aierrors.InvalidArgument("unknown vote target type " + string(targetType))
}
